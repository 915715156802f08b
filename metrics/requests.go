package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestLabels        = []string{"endpoint", "status", "cause"}
	requestLatencyLabels = []string{"endpoint"}
)

// RequestMetrics instruments the query API.
type RequestMetrics struct {
	RequestCounts    *prometheus.CounterVec
	RequestLatencies *prometheus.HistogramVec
}

// NewDefaultRequestMetrics creates request counters and latency histograms
// for an HTTP service.
func NewDefaultRequestMetrics(pkg string) RequestMetrics {
	m := RequestMetrics{
		RequestCounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_requests", pkg),
				Help: "How many service requests were made, partitioned by request endpoint, status, and cause.",
			},
			requestLabels,
		),
		RequestLatencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_request_latencies", pkg),
				Help: "How long requests take to process, partitioned by request endpoint.",
			},
			requestLatencyLabels,
		),
	}
	m.RequestCounts = registerOnce(m.RequestCounts).(*prometheus.CounterVec)
	m.RequestLatencies = registerOnce(m.RequestLatencies).(*prometheus.HistogramVec)
	return m
}

// padLabels truncates or pads labels with empty strings to n entries.
func padLabels(labels []string, n int) []string {
	if len(labels) > n {
		return labels[:n]
	}
	return append(labels, make([]string, n-len(labels))...)
}

// RequestCounter returns the counter for endpoint, status and cause.
func (m *RequestMetrics) RequestCounter(labels ...string) prometheus.Counter {
	return m.RequestCounts.WithLabelValues(padLabels(labels, len(requestLabels))...)
}

// RequestTimer starts a latency timer for the endpoint.
func (m *RequestMetrics) RequestTimer(labels ...string) *prometheus.Timer {
	return prometheus.NewTimer(m.RequestLatencies.WithLabelValues(padLabels(labels, len(requestLatencyLabels))...))
}
