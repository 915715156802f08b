package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamingMetrics instruments the per-chain ingestion pipeline.
type StreamingMetrics struct {
	chain string

	extracted    *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	writes       *prometheus.CounterVec
	queueDepth   *prometheus.GaugeVec
	lastFinished *prometheus.GaugeVec
}

// NewStreamingMetrics returns the pipeline metrics for one chain.
func NewStreamingMetrics(chain string) StreamingMetrics {
	m := StreamingMetrics{
		chain: chain,
		extracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streaming_blocks_extracted",
				Help: "How many finalized blocks were extracted, partitioned by chain and status.",
			},
			[]string{"chain", "status"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streaming_blocks_dropped",
				Help: "How many extracted blocks were discarded by the drop_oldest overflow policy.",
			},
			[]string{"chain"},
		),
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streaming_block_writes",
				Help: "How many blocks were handed to a write target, partitioned by chain, target and status.",
			},
			[]string{"chain", "target", "status"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "streaming_queue_depth",
				Help: "Blocks waiting between the syncer and the consumer.",
			},
			[]string{"chain"},
		),
		lastFinished: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "streaming_last_block",
				Help: "Number of the last block handed to the write target.",
			},
			[]string{"chain"},
		),
	}
	m.extracted = registerOnce(m.extracted).(*prometheus.CounterVec)
	m.dropped = registerOnce(m.dropped).(*prometheus.CounterVec)
	m.writes = registerOnce(m.writes).(*prometheus.CounterVec)
	m.queueDepth = registerOnce(m.queueDepth).(*prometheus.GaugeVec)
	m.lastFinished = registerOnce(m.lastFinished).(*prometheus.GaugeVec)
	return m
}

func (m *StreamingMetrics) Extracted(status string) prometheus.Counter {
	return m.extracted.WithLabelValues(m.chain, status)
}

func (m *StreamingMetrics) Dropped() prometheus.Counter {
	return m.dropped.WithLabelValues(m.chain)
}

func (m *StreamingMetrics) Writes(target, status string) prometheus.Counter {
	return m.writes.WithLabelValues(m.chain, target, status)
}

func (m *StreamingMetrics) QueueDepth() prometheus.Gauge {
	return m.queueDepth.WithLabelValues(m.chain)
}

func (m *StreamingMetrics) LastBlock() prometheus.Gauge {
	return m.lastFinished.WithLabelValues(m.chain)
}
