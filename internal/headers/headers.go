package headers

import (
	"bytes"
	"strings"
)

var (
	crlf      = []byte("\r\n")
	blankLF   = []byte("\n\n")
	blankCRLF = []byte("\r\n\r\n")
)

// Complete reports whether data holds the blank line that ends a header block.
// Both bare LF and CRLF line endings are accepted.
func Complete(data []byte) bool {
	return bytes.Contains(data, blankLF) || bytes.Contains(data, blankCRLF)
}

// Headers is an ordered header set. Lookups are case-insensitive; names are
// written out in the case and order they were first set.
type Headers struct {
	names  []string
	values map[string]string
}

func NewHeaders() *Headers {
	return &Headers{
		values: make(map[string]string),
	}
}

// Get returns the value for a header
func (h *Headers) Get(key string) (string, bool) {
	v, ok := h.values[strings.ToLower(key)]
	return v, ok
}

// Set replaces the value for a header, keeping its original position
func (h *Headers) Set(key, value string) {
	lower := strings.ToLower(key)
	if _, ok := h.values[lower]; !ok {
		h.names = append(h.names, key)
	}
	h.values[lower] = value
}

// Bytes serialises the header lines followed by the terminating blank line
func (h *Headers) Bytes() []byte {
	var buf bytes.Buffer
	for _, name := range h.names {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(h.values[strings.ToLower(name)])
		buf.Write(crlf)
	}
	buf.Write(crlf)
	return buf.Bytes()
}
