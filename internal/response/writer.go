package response

import (
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sys/unix"

	srverrors "github.com/Brownie44l1/webserver/internal/errors"
)

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes one response to a connection: the head in one write, the
// body in a second.
type Writer struct {
	w        io.Writer
	state    writerState
	hadError bool
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
	}
}

// WriteHead writes the status line and headers
func (w *Writer) WriteHead(resp *Response, now time.Time) (int, error) {
	if w.state != stateStart {
		return 0, fmt.Errorf("head already written")
	}

	n, err := WriteFull(w.w, Head(resp, now))
	if err != nil {
		w.hadError = true
		return n, err
	}

	w.state = stateHeadersWritten
	return n, nil
}

// WriteBody writes the complete response body and returns the bytes sent,
// which may be short of BodyLength when the connection fails.
func (w *Writer) WriteBody(resp *Response) (int, error) {
	if w.state != stateHeadersWritten {
		return 0, fmt.Errorf("must write head before body")
	}

	n, err := WriteFull(w.w, resp.Body)
	if err != nil {
		w.hadError = true
		return n, err
	}

	w.state = stateBodyWritten
	return n, nil
}

func (w *Writer) HadError() bool {
	return w.hadError
}

// WriteFull writes all of p, looping over short writes and retrying writes
// interrupted by a signal. Any other failure ends the loop with a
// TransportError and the count of bytes already sent.
func WriteFull(w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		if n > 0 {
			written += n
		}

		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return written, srverrors.New(srverrors.TransportError, "write", err)
		}

		if n == 0 {
			return written, srverrors.New(srverrors.TransportError, "write", io.ErrShortWrite)
		}
	}
	return written, nil
}
