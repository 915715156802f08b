package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatabaseMetrics instruments writes and reads against chain databases.
type DatabaseMetrics struct {
	operations *prometheus.CounterVec
	latencies  *prometheus.HistogramVec
}

// NewDefaultDatabaseMetrics creates the counters and latency histograms
// for database operations, partitioned by chain and operation.
func NewDefaultDatabaseMetrics(pkg string) DatabaseMetrics {
	m := DatabaseMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_db_operations", pkg),
				Help: "How many database operations occur, partitioned by chain, operation and status.",
			},
			[]string{"chain", "operation", "status"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_db_latencies", pkg),
				Help: "How long database operations take, partitioned by chain and operation.",
			},
			[]string{"chain", "operation"},
		),
	}
	m.operations = registerOnce(m.operations).(*prometheus.CounterVec)
	m.latencies = registerOnce(m.latencies).(*prometheus.HistogramVec)
	return m
}

// DatabaseOperations returns the counter for one chain/operation/status.
func (m *DatabaseMetrics) DatabaseOperations(chain, operation, status string) prometheus.Counter {
	return m.operations.WithLabelValues(chain, operation, status)
}

// DatabaseLatencies starts a latency timer for the operation.
func (m *DatabaseMetrics) DatabaseLatencies(chain, operation string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(chain, operation))
}
