package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the gateway
type Metrics struct {
	// Memory writes by tier ("short_term", "long_term")
	MemoryWrites *prometheus.CounterVec

	// Search fan-out
	SearchRequests prometheus.Counter
	SearchLatency  prometheus.Histogram

	// Promotion sweep outcomes ("promoted", "failed", "skipped")
	Promotions *prometheus.CounterVec

	// Tier failures by subsystem ("short_term", "long_term", "audit")
	TierErrors *prometheus.CounterVec
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		MemoryWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memgate_memory_writes_total",
			Help: "Total number of memory writes by tier",
		}, []string{"tier"}),

		SearchRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memgate_search_requests_total",
			Help: "Total number of tier fan-out searches",
		}),

		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "memgate_search_duration_seconds",
			Help:    "Tier fan-out search latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		Promotions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memgate_promotions_total",
			Help: "Total number of promotion attempts by outcome",
		}, []string{"outcome"}),

		TierErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memgate_tier_errors_total",
			Help: "Total number of storage-tier failures by subsystem",
		}, []string{"subsystem"}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (nil before InitMetrics)
func GetMetrics() *Metrics {
	return globalMetrics
}
