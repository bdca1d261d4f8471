package file

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"breachetl/internal/etlerr"
)

// ReadConfigList reads a file naming one pipeline config per line, as used
// by the -config-list flag. Blank lines and '#' comments (whole-line or
// trailing) are skipped. Relative entries resolve against the list's own
// directory so a list can travel with its configs. Repeated entries are
// kept once, in first-seen order.
func ReadConfigList(path string) ([]string, error) {
	op := "read config list " + path
	f, err := os.Open(path)
	if err != nil {
		return nil, etlerr.New(etlerr.ErrIO, op, err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	seen := make(map[string]struct{})
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, etlerr.New(etlerr.ErrIO, op, err)
	}
	return out, nil
}
