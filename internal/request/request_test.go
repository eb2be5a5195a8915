package request

import (
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	srverrors "github.com/Brownie44l1/webserver/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleGETRequest(t *testing.T) {
	data := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data), nil, true)

	require.NoError(t, err)
	assert.Equal(t, StatusOK, req.StatusCode)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, "GET /index.html HTTP/1.1", req.RequestLine)
	assert.NoError(t, req.Err)
}

func TestBlankLineRightAfterRequestLine(t *testing.T) {
	req := Parse([]byte("GET /index.html HTTP/1.1\r\n\r\n"), true)
	assert.Equal(t, StatusOK, req.StatusCode)

	req = Parse([]byte("GET /index.html HTTP/1.1\n\n"), true)
	assert.Equal(t, StatusOK, req.StatusCode)
	assert.Equal(t, "GET /index.html HTTP/1.1", req.RequestLine)
}

func TestVersionPrefixAccepted(t *testing.T) {
	req := Parse([]byte("GET / HTTP/1.1x\r\n\r\n"), true)
	assert.Equal(t, StatusOK, req.StatusCode)
	assert.Equal(t, "HTTP/1.1x", req.Version)
}

func TestMalformedRequests(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"no terminator", "GET /index.html HTTP/1.1", ErrMissingLineTerminator},
		{"garbage", "garbage", ErrMissingLineTerminator},
		{"two tokens", "GET /path\r\n\r\n", ErrMalformedRequestLine},
		{"four tokens", "GET /a b HTTP/1.1\r\n\r\n", ErrMalformedRequestLine},
		{"double space", "GET  /a HTTP/1.1\r\n\r\n", ErrMalformedRequestLine},
		{"empty line", "\r\n\r\n", ErrMalformedRequestLine},
		{"post", "POST /index.html HTTP/1.1\r\n\r\n", ErrInvalidMethod},
		{"lowercase get", "get /index.html HTTP/1.1\r\n\r\n", ErrInvalidMethod},
		{"http 1.0", "GET / HTTP/1.0\r\n\r\n", ErrUnsupportedVersion},
		{"http 2", "GET / HTTP/2.0\r\n\r\n", ErrUnsupportedVersion},
		{"no blank line", "GET / HTTP/1.1\r\nHost: example.com\r\n", ErrMissingBlankLine},
		{"traversal", "GET /../etc/passwd HTTP/1.1\r\n\r\n", ErrPathTraversal},
		{"nested traversal", "GET /a/../../b HTTP/1.1\r\n\r\n", ErrPathTraversal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := Parse([]byte(tc.data), true)

			assert.Equal(t, StatusBadRequest, req.StatusCode)
			assert.True(t, req.Malformed())
			assert.Equal(t, NoRequestLine, req.RequestLine)
			assert.ErrorIs(t, req.Err, tc.want)
			assert.ErrorIs(t, req.Err, srverrors.ClientError)
		})
	}
}

func TestTraversalAllowedWhenNotStrict(t *testing.T) {
	req := Parse([]byte("GET /../etc/passwd HTTP/1.1\r\n\r\n"), false)

	assert.Equal(t, StatusOK, req.StatusCode)
	assert.Equal(t, "/../etc/passwd", req.Path)
}

func TestDotsInsideNamesAreNotTraversal(t *testing.T) {
	req := Parse([]byte("GET /a..b/..c/file..txt HTTP/1.1\r\n\r\n"), true)
	assert.Equal(t, StatusOK, req.StatusCode)
}

func TestPathIsVerbatim(t *testing.T) {
	req := Parse([]byte("GET /a%20b.html?x=1 HTTP/1.1\r\n\r\n"), true)

	require.Equal(t, StatusOK, req.StatusCode)
	assert.Equal(t, "/a%20b.html?x=1", req.Path)
}

func TestRequestLineTruncated(t *testing.T) {
	path := "/" + strings.Repeat("a", 400)
	req := Parse([]byte("GET "+path+" HTTP/1.1\r\n\r\n"), true)

	require.Equal(t, StatusOK, req.StatusCode)
	assert.Len(t, req.RequestLine, maxLoggedLine)
	assert.Equal(t, path, req.Path)
}

func TestRequestLineTruncatedOnRuneBoundary(t *testing.T) {
	// "GET /a" is 6 bytes, so the 2-byte runes start at even offsets and
	// byte 255 is the second half of one
	path := "/a" + strings.Repeat("é", 200)
	req := Parse([]byte("GET "+path+" HTTP/1.1\r\n\r\n"), true)

	require.Equal(t, StatusOK, req.StatusCode)
	assert.Len(t, req.RequestLine, maxLoggedLine-1)
	assert.True(t, utf8.ValidString(req.RequestLine))
	assert.Equal(t, path, req.Path)
}

func TestIncrementalParsing(t *testing.T) {
	// The request line arrives split over two reads; the second carries
	// the terminator and the blank line
	data := []byte("GET / HTTP/1.1\r\n\r\n")
	reader := &slowReader{data: data, chunkSize: 9}

	req, err := RequestFromReader(reader, make([]byte, 1024), true)

	require.NoError(t, err)
	assert.Equal(t, StatusOK, req.StatusCode)
	assert.Equal(t, "/", req.Path)
	assert.Equal(t, 2, reader.reads)
}

func TestStopsReadingAfterLineTerminator(t *testing.T) {
	// The client keeps the connection open without ever sending the blank
	// line; the reader must not be asked for more
	data := []byte("GET /index.html HTTP/1.1\r\nHost: x\r\n")
	reader := &slowReader{data: data, chunkSize: len(data), failAfter: true}

	req, err := RequestFromReader(reader, make([]byte, 1024), true)

	require.NoError(t, err)
	assert.Equal(t, 1, reader.reads)
	assert.Equal(t, StatusBadRequest, req.StatusCode)
	assert.ErrorIs(t, req.Err, ErrMissingBlankLine)
}

func TestKeepsReadingUntilLineTerminator(t *testing.T) {
	reader := &slowReader{data: []byte("GET /index.html HTTP/1.1\r\n\r\n"), chunkSize: 4}

	req, err := RequestFromReader(reader, nil, true)

	require.NoError(t, err)
	// 28 bytes in reads of 4: the terminator and blank line come in the 7th
	assert.Equal(t, StatusOK, req.StatusCode)
	assert.Equal(t, 7, reader.reads)
}

func TestStopsReadingAtBlankLine(t *testing.T) {
	// A reader that would block forever after the head must not be read again
	data := []byte("GET / HTTP/1.1\r\n\r\n")
	reader := &slowReader{data: data, chunkSize: len(data), failAfter: true}

	req, err := RequestFromReader(reader, make([]byte, 1024), true)

	require.NoError(t, err)
	assert.Equal(t, StatusOK, req.StatusCode)
}

func TestNoTerminatorBeforeEOF(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader("garbage without newline"), nil, true)

	require.NoError(t, err)
	assert.Equal(t, StatusBadRequest, req.StatusCode)
	assert.ErrorIs(t, req.Err, ErrMissingLineTerminator)
}

func TestBufferFullParsesWhatWasRead(t *testing.T) {
	data := "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("x", 100) + "\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data), make([]byte, 32), true)

	require.NoError(t, err)
	assert.Equal(t, StatusBadRequest, req.StatusCode)
	assert.ErrorIs(t, req.Err, ErrMissingBlankLine)
}

func TestReadErrorWithNoData(t *testing.T) {
	boom := errors.New("connection reset")
	req, err := RequestFromReader(&errReader{err: boom}, nil, true)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, srverrors.TransportError)
	assert.Equal(t, StatusInternalServerError, req.StatusCode)
	assert.Equal(t, NoRequestLine, req.RequestLine)
}

func TestDeadlineAfterPartialData(t *testing.T) {
	reader := &slowReader{
		data:      []byte("garbage"),
		chunkSize: 64,
		failAfter: true,
	}

	req, err := RequestFromReader(reader, nil, true)

	require.NoError(t, err)
	assert.Equal(t, 2, reader.reads)
	assert.Equal(t, StatusBadRequest, req.StatusCode)
	assert.ErrorIs(t, req.Err, ErrMissingLineTerminator)
}

// slowReader simulates a network connection that provides data slowly
type slowReader struct {
	data      []byte
	chunkSize int
	offset    int
	failAfter bool // return a timeout instead of EOF once data runs out
	reads     int
}

func (r *slowReader) Read(p []byte) (int, error) {
	r.reads++
	if r.offset >= len(r.data) {
		if r.failAfter {
			return 0, timeoutError{}
		}
		return 0, io.EOF
	}

	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.offset {
		n = len(r.data) - r.offset
	}

	copy(p, r.data[r.offset:r.offset+n])
	r.offset += n
	return n, nil
}

type errReader struct {
	err error
}

func (r *errReader) Read(p []byte) (int, error) {
	return 0, r.err
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
