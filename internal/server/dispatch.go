package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// Policy gives each accepted connection its own worker. Dispatch takes
// ownership of conn: the accept loop never touches it again, so the next
// Accept cannot race the worker over connection data.
type Policy interface {
	Dispatch(conn net.Conn) error
	// Wait blocks until every dispatched worker has finished
	Wait()
}

// SharedPolicy serves each connection on its own goroutine, without limit
type SharedPolicy struct {
	serve func(net.Conn)
	wg    sync.WaitGroup
}

func NewSharedPolicy(serve func(net.Conn)) *SharedPolicy {
	return &SharedPolicy{serve: serve}
}

func (p *SharedPolicy) Dispatch(conn net.Conn) error {
	p.wg.Add(1)
	go func(c net.Conn) {
		defer p.wg.Done()
		p.serve(c)
	}(conn)
	return nil
}

func (p *SharedPolicy) Wait() {
	p.wg.Wait()
}

// BoundedPolicy serves at most n connections at once. When every slot is
// busy Dispatch blocks, which stops the accept loop and leaves new clients in
// the kernel backlog instead of dropping them.
type BoundedPolicy struct {
	serve func(net.Conn)
	slots chan struct{}
	wg    sync.WaitGroup
}

func NewBoundedPolicy(n int, serve func(net.Conn)) *BoundedPolicy {
	return &BoundedPolicy{
		serve: serve,
		slots: make(chan struct{}, n),
	}
}

func (p *BoundedPolicy) Dispatch(conn net.Conn) error {
	p.slots <- struct{}{}
	p.wg.Add(1)
	go func(c net.Conn) {
		defer func() {
			<-p.slots
			p.wg.Done()
		}()
		p.serve(c)
	}(conn)
	return nil
}

func (p *BoundedPolicy) Wait() {
	p.wg.Wait()
}

// InheritedConnFD is the descriptor an isolated worker process finds its
// connection on (the first of exec.Cmd.ExtraFiles).
const InheritedConnFD = 3

// IsolatedPolicy serves each connection in a separate process so a crash in
// one connection cannot touch another. The child is path run with args and
// must call ServeInherited. Finished children are reaped by Wait goroutines.
type IsolatedPolicy struct {
	path   string
	args   []string
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewIsolatedPolicy(path string, args []string, logger zerolog.Logger) *IsolatedPolicy {
	return &IsolatedPolicy{
		path:   path,
		args:   args,
		logger: logger,
	}
}

func (p *IsolatedPolicy) Dispatch(conn net.Conn) error {
	fc, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		conn.Close()
		return fmt.Errorf("isolated dispatch needs a socket-backed connection, got %T", conn)
	}

	// File returns a duplicate descriptor; the parent's copy is closed at once
	f, err := fc.File()
	conn.Close()
	if err != nil {
		return fmt.Errorf("duplicate connection descriptor: %w", err)
	}
	defer f.Close()

	cmd := exec.Command(p.path, p.args...)
	cmd.ExtraFiles = []*os.File{f}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker process: %w", err)
	}

	p.wg.Add(1)
	go p.reap(cmd)
	return nil
}

func (p *IsolatedPolicy) reap(cmd *exec.Cmd) {
	defer p.wg.Done()

	if err := cmd.Wait(); err != nil {
		p.logger.Warn().Err(err).Int("pid", cmd.Process.Pid).Msg("worker process failed")
	}
}

func (p *IsolatedPolicy) Wait() {
	p.wg.Wait()
}

// ServeInherited is the child side of IsolatedPolicy: it serves the
// connection passed on InheritedConnFD and returns when it is closed.
func ServeInherited(w *Worker) error {
	f := os.NewFile(InheritedConnFD, "conn")
	if f == nil {
		return errors.New("no inherited connection descriptor")
	}

	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("inherited descriptor is not a connection: %w", err)
	}

	w.Serve(conn)
	return nil
}
