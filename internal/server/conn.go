package server

import (
	"net"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/webserver/internal/accesslog"
	"github.com/Brownie44l1/webserver/internal/request"
	"github.com/Brownie44l1/webserver/internal/response"
)

// Worker serves exactly one connection per Serve call. A Worker holds only
// read-only configuration and shared services, so one instance is used by
// every connection.
type Worker struct {
	builder     *response.Builder
	access      *accesslog.Logger
	logger      zerolog.Logger
	metrics     *Metrics
	buffers     *BufferPool
	readTimeout time.Duration
	stall       time.Duration
	strict      bool
	now         func() time.Time
}

// NewWorker builds a Worker from a validated Config
func NewWorker(cfg Config, access *accesslog.Logger, logger zerolog.Logger, metrics *Metrics) *Worker {
	return &Worker{
		builder:     response.NewBuilder(cfg.DocumentRoot),
		access:      access,
		logger:      logger,
		metrics:     metrics,
		buffers:     NewBufferPool(cfg.MaxRequestSize),
		readTimeout: cfg.ReadTimeout,
		stall:       cfg.StallTimeout,
		strict:      cfg.Strict,
		now:         time.Now,
	}
}

// Serve handles one connection end-to-end: read, parse, build, write, log,
// close. Failures stay inside this connection.
func (w *Worker) Serve(conn net.Conn) {
	w.metrics.ActiveConnections.Add(1)
	defer w.metrics.ActiveConnections.Add(-1)
	defer conn.Close()

	client := clientIP(conn.RemoteAddr())
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Interface("panic", r).
				Str("client_ip", client).
				Str("stack", string(debug.Stack())).
				Msg("worker panic recovered")
		}
	}()

	start := w.now()

	var deadline time.Time
	if w.readTimeout > 0 {
		deadline = start.Add(w.readTimeout)
		if err := conn.SetReadDeadline(deadline); err != nil {
			w.logger.Debug().Err(err).Str("client_ip", client).Msg("failed to set read deadline")
		}
	}

	reader := &stallReader{conn: conn, stall: w.stall, deadline: deadline}
	buf := w.buffers.Get()
	req, err := request.RequestFromReader(reader, buf, w.strict)
	w.buffers.Put(buf)
	if err != nil {
		w.logger.Warn().Err(err).Str("client_ip", client).Msg("failed to read request")
	} else if req.Malformed() {
		w.logger.Debug().Err(req.Err).Str("client_ip", client).Msg("invalid request")
	}

	resp := w.builder.Build(req)
	if !resp.StatusCode.IsSuccess() && !req.Malformed() {
		w.logger.Debug().
			Err(resp.Err).
			Str("client_ip", client).
			Str("path", sanitizeValue(req.Path)).
			Int("status", int(resp.StatusCode)).
			Msg("request not served")
	}

	written, err := w.send(conn, resp)
	if err != nil {
		w.logger.Warn().
			Err(err).
			Str("client_ip", client).
			Int("bytes", written).
			Int("content_length", resp.BodyLength).
			Msg("aborted response")
	}

	entry := accesslog.Entry{
		Time:          w.now(),
		ClientAddress: client,
		RequestLine:   req.RequestLine,
		StatusSummary: accesslog.StatusSummary(int(resp.StatusCode), written, resp.BodyLength),
	}
	if err := w.access.Log(entry); err != nil {
		w.metrics.RecordLogFailure()
		w.logger.Error().Err(err).Str("log_file", w.access.Path()).Msg("failed to write access log")
	}

	w.metrics.RecordRequest(resp.StatusCode, written, resp.BodyLength, w.now().Sub(start))
}

// send writes the head and then the body, returning the body bytes that
// reached the client. A failed head write aborts before the body.
func (w *Worker) send(conn net.Conn, resp *response.Response) (int, error) {
	rw := response.NewWriter(conn)

	if _, err := rw.WriteHead(resp, w.now()); err != nil {
		return 0, err
	}
	return rw.WriteBody(resp)
}

// stallReader limits how long a partly received request may stall. Before
// the first bytes arrive only the connection's own deadline applies, so an
// idle client is still governed by ReadTimeout alone.
type stallReader struct {
	conn     net.Conn
	stall    time.Duration
	deadline time.Time // overall deadline, zero if none
	started  bool
}

func (r *stallReader) Read(p []byte) (int, error) {
	if r.started && r.stall > 0 {
		d := time.Now().Add(r.stall)
		if !r.deadline.IsZero() && r.deadline.Before(d) {
			d = r.deadline
		}
		if err := r.conn.SetReadDeadline(d); err != nil {
			return 0, err
		}
	}

	n, err := r.conn.Read(p)
	if n > 0 {
		r.started = true
	}
	return n, err
}

// clientIP returns the host part of a peer address
func clientIP(addr net.Addr) string {
	if addr == nil {
		return "-"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
