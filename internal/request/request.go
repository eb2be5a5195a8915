package request

import (
	"unicode/utf8"

	srverrors "github.com/Brownie44l1/webserver/internal/errors"
)

const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusInternalServerError = 500
)

// NoRequestLine is logged in place of the request line when none was accepted
const NoRequestLine = "--"

// maxLoggedLine caps the request line kept for logging
const maxLoggedLine = 255

// Request is one parsed GET request. It is created per connection and owned
// by the worker serving that connection.
type Request struct {
	Method  string
	Path    string // verbatim request target, not yet checked against the filesystem
	Version string

	// RequestLine is the first line without its terminator, truncated for logging
	RequestLine string

	// StatusCode starts at 200 and is lowered as parsing and resolution fail
	StatusCode int

	// ContentLength is filled in once the response body is known
	ContentLength int

	// Err records why StatusCode is not 200
	Err error
}

func newRequest() *Request {
	return &Request{
		RequestLine: NoRequestLine,
		StatusCode:  StatusOK,
	}
}

// Malformed reports whether the request was rejected by the parser
func (r *Request) Malformed() bool {
	return r.StatusCode == StatusBadRequest
}

func (r *Request) fail(err error) *Request {
	r.StatusCode = StatusBadRequest
	r.RequestLine = NoRequestLine
	r.Err = srverrors.New(srverrors.ClientError, "parse request", err)
	return r
}

// truncateLine cuts line to maxLoggedLine bytes without splitting a rune
func truncateLine(line string) string {
	if len(line) <= maxLoggedLine {
		return line
	}

	cut := maxLoggedLine
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}
