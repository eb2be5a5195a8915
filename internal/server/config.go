package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	srverrors "github.com/Brownie44l1/webserver/internal/errors"
	"github.com/Brownie44l1/webserver/internal/request"
)

// DispatchMode selects the Policy that gives each connection its worker
type DispatchMode string

const (
	ModeShared   DispatchMode = "shared"   // one goroutine per connection, unbounded
	ModeBounded  DispatchMode = "bounded"  // at most MaxWorkers goroutines, accept waits when full
	ModeIsolated DispatchMode = "isolated" // one process per connection
)

// Config is set once at startup and read-only afterwards, so workers share
// it without locking.
type Config struct {
	Port         uint16
	DocumentRoot string // absolute, no trailing slash once validated
	LogFile      string

	// ReadTimeout bounds how long a worker waits for the request head.
	// Zero means no deadline: a stalled client holds its worker.
	ReadTimeout time.Duration

	// StallTimeout bounds each wait for more of a request once its first
	// bytes have arrived. A client that stops mid-line is answered with a
	// 400 when it expires. Zero disables it.
	StallTimeout time.Duration

	MaxRequestSize int
	Strict         bool // reject ".." segments in request targets
	Mode           DispatchMode
	MaxWorkers     int // used by ModeBounded
}

const DefaultStallTimeout = 500 * time.Millisecond

func DefaultConfig() Config {
	return Config{
		StallTimeout:   DefaultStallTimeout,
		MaxRequestSize: request.DefaultMaxRequestSize,
		Strict:         true,
		Mode:           ModeShared,
		MaxWorkers:     256,
	}
}

// ParsePort parses a TCP port as an unsigned 16-bit decimal number
func ParsePort(s string) (uint16, error) {
	if s == "" {
		return 0, configError("port", errors.New("port empty"))
	}

	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, configError("port", fmt.Errorf("%s - value out of range", s))
		}
		return 0, configError("port", fmt.Errorf("%s - not a number", s))
	}
	return uint16(p), nil
}

// Validate checks the config and normalises DocumentRoot. Every failure is a
// ConfigError.
func (c *Config) Validate() error {
	root, err := normalizeRoot(c.DocumentRoot)
	if err != nil {
		return err
	}
	c.DocumentRoot = root

	if err := checkLogFile(c.LogFile); err != nil {
		return err
	}

	switch c.Mode {
	case ModeShared, ModeIsolated:
	case ModeBounded:
		if c.MaxWorkers <= 0 {
			return configError("workers", fmt.Errorf("bounded mode needs a positive worker count, got %d", c.MaxWorkers))
		}
	default:
		return configError("mode", fmt.Errorf("unknown dispatch mode %q", c.Mode))
	}

	if c.ReadTimeout < 0 {
		return configError("timeout", fmt.Errorf("negative read timeout %s", c.ReadTimeout))
	}
	if c.StallTimeout < 0 {
		return configError("stall-timeout", fmt.Errorf("negative stall timeout %s", c.StallTimeout))
	}

	if c.MaxRequestSize <= 0 {
		c.MaxRequestSize = request.DefaultMaxRequestSize
	}
	return nil
}

// normalizeRoot strips a trailing slash, makes the root absolute and checks
// that it is a directory
func normalizeRoot(root string) (string, error) {
	if root == "" {
		return "", configError("webroot", errors.New("webroot empty"))
	}

	if len(root) > 1 && root[len(root)-1] == '/' {
		root = root[:len(root)-1]
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", configError("webroot", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", configError("webroot", fmt.Errorf("directory %s not found", root))
		}
		return "", configError("webroot", fmt.Errorf("unknown error opening %s: %w", root, err))
	}

	if !info.IsDir() {
		return "", configError("webroot", fmt.Errorf("%s is not a directory", root))
	}

	return abs, nil
}

// checkLogFile makes sure the log file can be created and appended to
func checkLogFile(path string) error {
	if path == "" {
		return configError("logfile", errors.New("logfile empty"))
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return configError("logfile", fmt.Errorf("%s is a directory", path))
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return configError("logfile", fmt.Errorf("permission to file %s failed", path))
		}
		return configError("logfile", fmt.Errorf("failed to open log file %s: %w", path, err))
	}
	return f.Close()
}

func configError(op string, err error) error {
	return srverrors.New(srverrors.ConfigError, op, err)
}
