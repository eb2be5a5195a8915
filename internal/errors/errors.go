package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by who caused it and how far it may propagate.
// Only ConfigError is fatal to the process; every other kind stays inside the
// worker that hit it.
type Kind int

const (
	ClientError Kind = iota
	ResourceError
	TransportError
	ConfigError
	LoggingError
)

func (k Kind) Error() string {
	switch k {
	case ClientError:
		return "client error"
	case ResourceError:
		return "resource error"
	case TransportError:
		return "transport error"
	case ConfigError:
		return "config error"
	case LoggingError:
		return "logging error"
	default:
		return fmt.Sprintf("unknown error kind: %d", int(k))
	}
}

// Error wraps an underlying failure with its Kind and the operation that failed
type Error struct {
	Kind       Kind
	Op         string
	underlying error
}

// New creates an Error of the given kind
func New(kind Kind, op string, err error) *Error {
	return &Error{
		Kind:       kind,
		Op:         op,
		underlying: err,
	}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.underlying != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.underlying)
	case e.underlying != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.underlying)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// Is lets errors.Is match an Error against its Kind
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of the first Error in err's chain
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
