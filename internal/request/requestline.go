package request

import (
	"bytes"
	"errors"
	"strings"
)

var (
	ErrMissingLineTerminator = errors.New("missing request line terminator")
	ErrMalformedRequestLine  = errors.New("malformed request line")
	ErrInvalidMethod         = errors.New("invalid HTTP method")
	ErrUnsupportedVersion    = errors.New("unsupported HTTP version")
	ErrMissingBlankLine      = errors.New("missing blank line after headers")
	ErrPathTraversal         = errors.New("path traversal in request target")
)

// parseRequestLine parses: METHOD PATH VERSION (terminator already stripped)
// Returns: method, path, version, error
func parseRequestLine(line []byte) (string, string, string, error) {
	// Exactly three tokens separated by single spaces
	parts := bytes.Split(line, []byte(" "))
	if len(parts) != 3 {
		return "", "", "", ErrMalformedRequestLine
	}
	for _, p := range parts {
		if len(p) == 0 {
			return "", "", "", ErrMalformedRequestLine
		}
	}

	method := string(parts[0])
	path := string(parts[1])
	version := string(parts[2])

	if !isValidMethod(method) {
		return "", "", "", ErrInvalidMethod
	}

	if !isValidVersion(version) {
		return "", "", "", ErrUnsupportedVersion
	}

	return method, path, version, nil
}

// isValidMethod checks if the HTTP method is supported. Only GET is served
// and the comparison is case-sensitive.
func isValidMethod(method string) bool {
	return method == "GET"
}

// isValidVersion accepts any token that begins with HTTP/1.1
func isValidVersion(version string) bool {
	return strings.HasPrefix(version, "HTTP/1.1")
}

// hasTraversal reports whether any segment of path is ".."
func hasTraversal(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
