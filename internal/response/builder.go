package response

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	srverrors "github.com/Brownie44l1/webserver/internal/errors"
	"github.com/Brownie44l1/webserver/internal/request"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrIsDirectory      = errors.New("directory listing not supported")
	ErrUnreadable       = errors.New("document could not be opened")
	ErrReadFailed       = errors.New("document could not be read")
)

// Builder resolves requests against a document root
type Builder struct {
	root string
}

// NewBuilder creates a Builder for root, which must already be absolute and
// have no trailing slash.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

func (b *Builder) Root() string {
	return b.root
}

// FullPath joins the root and the request target without cleaning it
func (b *Builder) FullPath(path string) string {
	return b.root + "/" + path
}

// Build produces exactly one Response for req and records the outcome on req
func (b *Builder) Build(req *request.Request) *Response {
	resp := b.resolve(req)

	req.StatusCode = int(resp.StatusCode)
	req.ContentLength = resp.BodyLength
	if req.Err == nil {
		req.Err = resp.Err
	}
	return resp
}

func (b *Builder) resolve(req *request.Request) *Response {
	// Parser already failed: no filesystem access
	switch req.StatusCode {
	case request.StatusBadRequest, request.StatusInternalServerError:
		return errorResponse(StatusCode(req.StatusCode), req.Err)
	}

	fullPath := b.FullPath(req.Path)

	info, err := os.Stat(fullPath)
	if err != nil {
		code, cause := classifyStatError(err)
		return errorResponse(code, resourceError(cause, err))
	}

	if info.IsDir() {
		return errorResponse(StatusForbidden, resourceError(ErrIsDirectory, nil))
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return errorResponse(StatusForbidden, resourceError(ErrUnreadable, err))
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return errorResponse(StatusInternalServerError, resourceError(ErrReadFailed, err))
	}

	return newResponse(StatusOK, body, nil)
}

// classifyStatError maps a stat failure to a status. Anything other than a
// missing file is reported as 403.
func classifyStatError(err error) (StatusCode, error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return StatusNotFound, ErrNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return StatusForbidden, ErrPermissionDenied
	default:
		return StatusForbidden, ErrUnreadable
	}
}

func resourceError(cause, err error) error {
	if err != nil {
		cause = fmt.Errorf("%w: %w", cause, err)
	}
	return srverrors.New(srverrors.ResourceError, "resolve", cause)
}
