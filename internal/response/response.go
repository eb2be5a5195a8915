package response

import (
	"strconv"
	"time"

	"github.com/Brownie44l1/webserver/internal/headers"
)

// ContentType is sent with every response; there is no MIME detection
const ContentType = "text/html"

// DateFormat is RFC 1123 in UTC, as HTTP dates are written
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Response is the outcome of resolving one Request. It is produced and
// released by the worker that owns the request.
type Response struct {
	StatusCode StatusCode
	StatusText string
	Body       []byte
	BodyLength int

	// Err records why StatusCode is not 200
	Err error
}

func newResponse(code StatusCode, body []byte, err error) *Response {
	return &Response{
		StatusCode: code,
		StatusText: StatusText(code),
		Body:       body,
		BodyLength: len(body),
		Err:        err,
	}
}

func errorResponse(code StatusCode, err error) *Response {
	return newResponse(code, ErrorBody(code), err)
}

// Header assembles the header block for resp. Content-Length always equals
// the length of resp.Body.
func Header(resp *Response, now time.Time) *headers.Headers {
	h := headers.NewHeaders()
	h.Set("Date", now.UTC().Format(DateFormat))
	h.Set("Content-Type", ContentType)
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	return h
}

// Head returns the status line and header block as one buffer
func Head(resp *Response, now time.Time) []byte {
	head := []byte(statusLine(resp.StatusCode))
	return append(head, Header(resp, now).Bytes()...)
}
