package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type CacheReadStatus string

const (
	CacheReadStatusHit   CacheReadStatus = "hit"
	CacheReadStatusMiss  CacheReadStatus = "miss"
	CacheReadStatusError CacheReadStatus = "error"
)

// CacheMetrics counts reads from a local cache.
type CacheMetrics struct {
	cache string
	reads *prometheus.CounterVec
}

// NewCacheMetrics returns read counters for the named cache.
func NewCacheMetrics(cache string) *CacheMetrics {
	reads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "local_cache_reads",
			Help: "How many local cache reads occur, partitioned by cache and status (hit, miss, error).",
		},
		[]string{"cache", "status"},
	)
	return &CacheMetrics{
		cache: cache,
		reads: registerOnce(reads).(*prometheus.CounterVec),
	}
}

func (m *CacheMetrics) LocalCacheReads(status CacheReadStatus) prometheus.Counter {
	return m.reads.WithLabelValues(m.cache, string(status))
}
