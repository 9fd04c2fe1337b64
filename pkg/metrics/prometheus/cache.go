// Package prometheus implements the minos metric interfaces on the
// Prometheus client, registered against the gate in pkg/metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mcavallo/minos/pkg/blockcache"
	"github.com/mcavallo/minos/pkg/metrics"
)

// cacheMetrics is the Prometheus implementation of blockcache.Metrics.
type cacheMetrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	evictions  prometheus.Counter
	writeBacks prometheus.Counter
}

// NewCacheMetrics creates a Prometheus-backed block cache metrics sink.
//
// Returns nil if metrics are not enabled (InitRegistry not called);
// callers pass the nil straight to the cache, which skips collection.
func NewCacheMetrics() blockcache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &cacheMetrics{
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "minos_blockcache_hits_total",
			Help: "Total number of block lookups served from the cache",
		}),
		misses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "minos_blockcache_misses_total",
			Help: "Total number of block lookups that read through the device",
		}),
		evictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "minos_blockcache_evictions_total",
			Help: "Total number of cached blocks replaced",
		}),
		writeBacks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "minos_blockcache_writebacks_total",
			Help: "Total number of dirty blocks written back on eviction",
		}),
	}
}

// ObserveHit implements blockcache.Metrics.
func (m *cacheMetrics) ObserveHit() { m.hits.Inc() }

// ObserveMiss implements blockcache.Metrics.
func (m *cacheMetrics) ObserveMiss() { m.misses.Inc() }

// ObserveEviction implements blockcache.Metrics.
func (m *cacheMetrics) ObserveEviction() { m.evictions.Inc() }

// ObserveWriteBack implements blockcache.Metrics.
func (m *cacheMetrics) ObserveWriteBack() { m.writeBacks.Inc() }
