package request

import (
	"bytes"
	"errors"
	"io"

	srverrors "github.com/Brownie44l1/webserver/internal/errors"
	"github.com/Brownie44l1/webserver/internal/headers"
)

// DefaultMaxRequestSize caps how much of a request head is read
const DefaultMaxRequestSize = 8192

// RequestFromReader reads a request head into buf and parses it. Reading stops
// after the read that delivers the first line terminator, once buf is full, or
// when the reader stops producing data (EOF, error, deadline). Whatever was
// read is then parsed, so a client that never sends a terminator still gets a
// 400 as soon as its reader gives up.
//
// The returned Request is never nil. The error is non-nil only when nothing
// could be read at all; the Request then carries a 500.
func RequestFromReader(reader io.Reader, buf []byte, strict bool) (*Request, error) {
	if len(buf) == 0 {
		buf = make([]byte, DefaultMaxRequestSize)
	}

	n, err := readHead(reader, buf)
	if err != nil && n == 0 {
		req := newRequest()
		req.StatusCode = StatusInternalServerError
		req.Err = srverrors.New(srverrors.TransportError, "read request", err)
		return req, req.Err
	}

	return Parse(buf[:n], strict), nil
}

// readHead reads until a line terminator has arrived. The read that carries
// it is the last one: the rest of the head is expected in the same segment,
// and a missing blank line is reported rather than waited for.
func readHead(reader io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := reader.Read(buf[n:])
		n += m

		if bytes.IndexByte(buf[:n], '\n') >= 0 {
			return n, nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
	}
	return n, nil
}

// Parse parses a raw request head. It does not fail: problems are recorded in
// the returned Request as a 400 with Err set. With strict set, a target that
// contains a ".." segment is rejected as well.
func Parse(data []byte, strict bool) *Request {
	req := newRequest()

	// Find end of the request line
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		return req.fail(ErrMissingLineTerminator)
	}

	end := idx
	if end > 0 && data[end-1] == '\r' {
		end--
	}
	line := data[:end]

	method, path, version, err := parseRequestLine(line)
	if err != nil {
		return req.fail(err)
	}

	// The request line's own terminator may start the blank line
	if !headers.Complete(data[end:]) {
		return req.fail(ErrMissingBlankLine)
	}

	if strict && hasTraversal(path) {
		return req.fail(ErrPathTraversal)
	}

	req.Method = method
	req.Path = path
	req.Version = version
	req.RequestLine = truncateLine(string(line))
	return req
}
