package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/webserver/internal/accesslog"
	srverrors "github.com/Brownie44l1/webserver/internal/errors"
)

const maxAcceptBackoff = time.Second

// Server owns the listening socket and hands every accepted connection to
// its Policy.
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	metrics  *Metrics
	echo     io.Writer
	worker   *Worker
	policy   Policy
	listener net.Listener
	closed   atomic.Bool

	// mu orders Serve's start against Close; serveDone is closed when the
	// accept loop has returned and dispatches no more connections.
	mu        sync.Mutex
	serveDone chan struct{}

	workerPath string
	workerArgs []string
}

type Option func(*Server)

// WithLogger sets the operator logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithEcho sets where served request lines are echoed (stdout by default)
func WithEcho(w io.Writer) Option {
	return func(s *Server) {
		s.echo = w
	}
}

// WithPolicy overrides the Policy chosen from Config.Mode
func WithPolicy(p Policy) Option {
	return func(s *Server) {
		s.policy = p
	}
}

// WithWorkerCommand sets the command ModeIsolated runs for each connection
func WithWorkerCommand(path string, args []string) Option {
	return func(s *Server) {
		s.workerPath = path
		s.workerArgs = args
	}
}

// New validates cfg and builds a Server. No socket is opened yet.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  NewDefaultLogger(false),
		metrics: NewMetrics(),
		echo:    os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.worker = NewWorker(cfg, accesslog.New(cfg.LogFile, s.echo), s.logger, s.metrics)

	if s.policy == nil {
		p, err := s.newPolicy()
		if err != nil {
			return nil, err
		}
		s.policy = p
	}
	return s, nil
}

func (s *Server) newPolicy() (Policy, error) {
	switch s.cfg.Mode {
	case ModeBounded:
		return NewBoundedPolicy(s.cfg.MaxWorkers, s.worker.Serve), nil
	case ModeIsolated:
		if s.workerPath == "" {
			return nil, configError("mode", errors.New("isolated mode needs a worker command"))
		}
		return NewIsolatedPolicy(s.workerPath, s.workerArgs, s.logger), nil
	default:
		return NewSharedPolicy(s.worker.Serve), nil
	}
}

// Listen binds the configured port on all interfaces. Failure is fatal to
// startup and is returned as a ConfigError.
func (s *Server) Listen() error {
	if s.listener != nil {
		return errors.New("server already listening")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return srverrors.New(srverrors.ConfigError, "listen", err)
	}

	s.listener = listener
	return nil
}

// Serve accepts connections until Close is called. Every connection is
// dispatched before the next Accept.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	s.serveDone = done
	s.mu.Unlock()
	defer close(done)

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}

			backoff = nextBackoff(backoff)
			s.logger.Error().Err(err).Dur("retry_in", backoff).Msg("error accepting connection")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		client := clientIP(conn.RemoteAddr())
		if err := s.policy.Dispatch(conn); err != nil {
			s.logger.Error().Err(err).Str("client_ip", client).Msg("failed to dispatch connection")
		}
	}
}

// ListenAndServe binds and then serves
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting. Workers already running finish on their own.
// Calling it again is a no-op.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) || s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Shutdown stops accepting and waits for in-flight workers or ctx. The
// accept loop is drained first so no connection is dispatched while the
// policy is being waited on.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Close()

	s.mu.Lock()
	serving := s.serveDone
	s.mu.Unlock()
	if serving != nil {
		select {
		case <-serving:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		s.policy.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) Config() Config {
	return s.cfg
}

func (s *Server) Worker() *Worker {
	return s.worker
}

func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}
