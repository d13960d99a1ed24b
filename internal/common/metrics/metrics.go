// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total number of provider invocations",
		},
		[]string{"provider", "capability", "outcome"},
	)

	ProviderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_fallbacks_total",
			Help: "Total number of tier fallbacks per capability",
		},
		[]string{"capability"},
	)

	BuildsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blueprint_builds_total",
			Help: "Total number of blueprint builds by terminal state",
		},
		[]string{"state"},
	)

	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "blueprint_build_duration_seconds",
			Help: "Duration of blueprint builds in seconds",
		},
		[]string{"state"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blueprint_cache_hits_total",
			Help: "Total number of blueprint cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blueprint_cache_misses_total",
			Help: "Total number of blueprint cache misses",
		},
	)
)
