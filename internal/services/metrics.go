package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application. A nil
// *Metrics is valid everywhere it is accepted: every method no-ops, so unit
// tests never need a registry.
type Metrics struct {
	// Cache metrics
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheUnavailable prometheus.Counter

	// Classifier metrics
	ClassifierCalls   prometheus.Counter
	ClassifierErrors  prometheus.Counter
	ClassifierLatency prometheus.Histogram
}

// InitMetrics initializes the Prometheus metrics. The cache reference feeds
// the live hit-rate gauge; pass nil to skip it.
func InitMetrics(cache *ClassificationCache) *Metrics {
	metrics := &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bimsense_classification_cache_hits_total",
			Help: "Total number of classification cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bimsense_classification_cache_misses_total",
			Help: "Total number of classification cache misses",
		}),
		CacheUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bimsense_classification_cache_unavailable_total",
			Help: "Total number of cache operations that failed because the backing store was unavailable",
		}),

		ClassifierCalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bimsense_classifier_calls_total",
			Help: "Total number of classification collaborator invocations",
		}),
		ClassifierErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bimsense_classifier_errors_total",
			Help: "Total number of failed classification collaborator invocations",
		}),
		ClassifierLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bimsense_classifier_call_duration_seconds",
			Help:    "Classification collaborator call latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // generative backends can be slow
		}),
	}

	if cache != nil {
		// Live hit rate straight from the store's counters.
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "bimsense_classification_cache_hit_rate",
				Help: "Current classification cache hit rate (1.0 before any requests)",
			},
			func() float64 {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()

				stats, err := cache.GetStatistics(ctx)
				if err != nil {
					return 0
				}
				return stats.HitRate()
			},
		))
	}

	return metrics
}

// AddCacheHits records cache hits.
func (m *Metrics) AddCacheHits(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheHits.Add(float64(n))
}

// AddCacheMisses records cache misses.
func (m *Metrics) AddCacheMisses(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheMisses.Add(float64(n))
}

// IncCacheUnavailable records a store-unavailable condition.
func (m *Metrics) IncCacheUnavailable() {
	if m == nil {
		return
	}
	m.CacheUnavailable.Inc()
}

// ObserveClassifierCall records one collaborator invocation.
func (m *Metrics) ObserveClassifierCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ClassifierCalls.Inc()
	m.ClassifierLatency.Observe(d.Seconds())
	if err != nil {
		m.ClassifierErrors.Inc()
	}
}
