package httpds

import (
	"bufio"
	"bytes"
)

// sniffLen is how much of a body is inspected before handing it to the
// loader.
const sniffLen = 512

// looksLikeHTML peeks at the start of br without consuming it and reports
// whether the body is an HTML page. Portals often answer a moved or
// login-gated CSV link with 200 and an HTML page.
func looksLikeHTML(br *bufio.Reader) bool {
	head, _ := br.Peek(sniffLen)
	head = bytes.TrimLeft(head, "\xef\xbb\xbf \t\r\n")
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html"))
}
