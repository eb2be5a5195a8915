package server

import (
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/webserver/internal/response"
)

// Metrics holds server runtime metrics
type Metrics struct {
	RequestsTotal     atomic.Int64
	ActiveConnections atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64
	BytesSent         atomic.Int64
	TruncatedWrites   atomic.Int64
	LogFailures       atomic.Int64

	TotalLatencyNs atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest records a completed transaction. written is the number of
// body bytes that reached the client; a short count is a truncated write.
func (m *Metrics) RecordRequest(code response.StatusCode, written, contentLength int, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.TotalLatencyNs.Add(duration.Nanoseconds())
	m.BytesSent.Add(int64(written))

	if written < contentLength {
		m.TruncatedWrites.Add(1)
	}

	switch {
	case code.IsClientError():
		m.Errors4xx.Add(1)
	case code.IsServerError():
		m.Errors5xx.Add(1)
	}
}

func (m *Metrics) RecordLogFailure() {
	m.LogFailures.Add(1)
}

// AverageLatency returns average request latency
func (m *Metrics) AverageLatency() time.Duration {
	totalReqs := m.RequestsTotal.Load()
	if totalReqs == 0 {
		return 0
	}

	avgNs := m.TotalLatencyNs.Load() / totalReqs
	return time.Duration(avgNs)
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	RequestsTotal     int64
	ActiveConnections int64
	Errors4xx         int64
	Errors5xx         int64
	BytesSent         int64
	TruncatedWrites   int64
	LogFailures       int64
	AverageLatency    time.Duration
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:     m.RequestsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		BytesSent:         m.BytesSent.Load(),
		TruncatedWrites:   m.TruncatedWrites.Load(),
		LogFailures:       m.LogFailures.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
