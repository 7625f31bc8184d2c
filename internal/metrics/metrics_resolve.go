package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResolveCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crate2gn_resolve_total",
			Help: "Total number of dependency graph resolutions",
		},
		[]string{"root"},
	)

	PackagesResolvedCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crate2gn_packages_resolved",
			Help: "Number of packages returned by the last resolution",
		},
		[]string{"root"},
	)

	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crate2gn_resolve_duration_seconds",
			Help:    "Dependency graph resolution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"root"},
	)
)

func Resolved(root string, packages int, startTime time.Time) {
	ResolveCount.WithLabelValues(root).Inc()
	PackagesResolvedCount.WithLabelValues(root).Set(float64(packages))
	ResolveDuration.WithLabelValues(root).Observe(time.Since(startTime).Seconds())
}
