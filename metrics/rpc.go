package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics instruments JSON-RPC calls against chain nodes and storage nodes.
type RPCMetrics struct {
	chain string

	calls     *prometheus.CounterVec
	latencies *prometheus.HistogramVec
	waits     *prometheus.CounterVec
}

// NewRPCMetrics returns the RPC metrics for one chain.
func NewRPCMetrics(chain string) RPCMetrics {
	m := RPCMetrics{
		chain: chain,
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rpc_calls",
				Help: "How many JSON-RPC calls were made, partitioned by chain, method and status.",
			},
			[]string{"chain", "method", "status"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "rpc_latencies",
				Help: "How long JSON-RPC calls take, partitioned by chain and method.",
			},
			[]string{"chain", "method"},
		),
		waits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rpc_rate_limit_waits",
				Help: "How many JSON-RPC calls had to wait for the rate limiter.",
			},
			[]string{"chain"},
		),
	}
	m.calls = registerOnce(m.calls).(*prometheus.CounterVec)
	m.latencies = registerOnce(m.latencies).(*prometheus.HistogramVec)
	m.waits = registerOnce(m.waits).(*prometheus.CounterVec)
	return m
}

// Call counts one call to method with the classified outcome of err.
func (m *RPCMetrics) Call(method string, err error) {
	m.calls.WithLabelValues(m.chain, method, ClassifyRPCError(err)).Inc()
}

// Timer starts a latency timer for method.
func (m *RPCMetrics) Timer(method string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(m.chain, method))
}

// RateLimitWait counts one call delayed by the rate limiter.
func (m *RPCMetrics) RateLimitWait() {
	m.waits.WithLabelValues(m.chain).Inc()
}

// ClassifyRPCError buckets an RPC error into a small set of labels.
func ClassifyRPCError(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "broken pipe") ||
		strings.Contains(lower, "eof"):
		return "network_error"
	default:
		return "error"
	}
}
