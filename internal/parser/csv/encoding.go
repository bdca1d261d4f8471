package csv

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// encodings maps accepted encoding names to decoders. UTF-8 input needs no
// decoder; a UTF-8 BOM is removed from the header instead.
var encodings = map[string]encoding.Encoding{
	"windows-1250": charmap.Windows1250,
	"windows-1252": charmap.Windows1252,
	"cp1250":       charmap.Windows1250,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"latin2":       charmap.ISO8859_2,
	// UTF-16 is detected from the BOM; big endian is assumed without one.
	"utf-16": unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM),
}

// decodeReader wraps r so that it yields UTF-8. An empty name or "utf-8"
// returns r unchanged.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "utf-8" || n == "utf8" {
		return r, nil
	}
	enc, ok := encodings[n]
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
