// Command webserver serves files from a web root over HTTP/1.1 GET and
// records every transaction in an access log.
//
//	webserver [flags] portnumber webroot logfile
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/webserver/internal/server"
)

const shutdownTimeout = 30 * time.Second

type options struct {
	cfg   server.Config
	debug bool

	// serveFD marks a child started by the isolated policy
	serveFD bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	logger := server.NewLogger(stderr, opts.debug)

	if opts.serveFD {
		return serveChild(opts, stdout, logger)
	}

	exe, err := os.Executable()
	if err != nil {
		logger.Error().Err(err).Msg("cannot locate own executable")
		return 1
	}

	srv, err := server.New(opts.cfg,
		server.WithLogger(logger),
		server.WithEcho(stdout),
		server.WithWorkerCommand(exe, append([]string{"-serve-fd"}, args...)),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprintf(stdout, "Web root is %s\n", srv.Config().DocumentRoot)

	if err := srv.Listen(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "Server up and listening for connections on port %d\n", boundPort(srv.Addr()))

	logger.Debug().
		Str("mode", string(opts.cfg.Mode)).
		Int("workers", opts.cfg.MaxWorkers).
		Dur("read_timeout", opts.cfg.ReadTimeout).
		Dur("stall_timeout", opts.cfg.StallTimeout).
		Bool("strict", opts.cfg.Strict).
		Str("log_file", opts.cfg.LogFile).
		Msg("server configured")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve()
	}()

	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-served:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("workers still running at shutdown")
	}

	stats := srv.Stats()
	logger.Info().
		Int64("requests", stats.RequestsTotal).
		Int64("errors_4xx", stats.Errors4xx).
		Int64("errors_5xx", stats.Errors5xx).
		Int64("bytes_sent", stats.BytesSent).
		Int64("truncated_writes", stats.TruncatedWrites).
		Int64("log_failures", stats.LogFailures).
		Dur("avg_latency", stats.AverageLatency).
		Msg("server stopped")
	return 0
}

// serveChild serves the single connection an isolated-mode parent handed
// down, then exits.
func serveChild(opts options, stdout io.Writer, logger zerolog.Logger) int {
	cfg := opts.cfg
	cfg.Mode = server.ModeShared

	srv, err := server.New(cfg, server.WithLogger(logger), server.WithEcho(stdout))
	if err != nil {
		logger.Error().Err(err).Msg("worker process config")
		return 1
	}

	if err := server.ServeInherited(srv.Worker()); err != nil {
		logger.Error().Err(err).Msg("worker process")
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	opts := options{cfg: server.DefaultConfig()}

	fs := flag.NewFlagSet("webserver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] portnumber webroot logfile\n", fs.Name())
		fs.PrintDefaults()
	}

	mode := fs.String("mode", string(opts.cfg.Mode), "dispatch mode: shared, bounded or isolated")
	fs.IntVar(&opts.cfg.MaxWorkers, "workers", opts.cfg.MaxWorkers, "concurrent connection limit in bounded mode")
	fs.DurationVar(&opts.cfg.ReadTimeout, "timeout", 0, "time allowed to receive a request head (0 waits forever)")
	fs.DurationVar(&opts.cfg.StallTimeout, "stall-timeout", opts.cfg.StallTimeout, "time a partly received request may stall before it is answered (0 waits forever)")
	fs.BoolVar(&opts.cfg.Strict, "strict", opts.cfg.Strict, `reject request paths containing ".." segments`)
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&opts.serveFD, "serve-fd", false, "internal: serve the connection inherited on fd 3")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.cfg.Mode = server.DispatchMode(*mode)

	if fs.NArg() != 3 {
		fs.Usage()
		return opts, fmt.Errorf("expected 3 arguments, got %d", fs.NArg())
	}

	port, err := server.ParsePort(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return opts, err
	}
	opts.cfg.Port = port
	opts.cfg.DocumentRoot = fs.Arg(1)
	opts.cfg.LogFile = fs.Arg(2)

	if err := opts.cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return opts, err
	}
	return opts, nil
}

func boundPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
