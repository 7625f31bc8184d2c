package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PackageFailedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crate2gn_package_failed_total",
			Help: "Number of packages whose rules could not be generated",
		},
		[]string{"package", "error_type"},
	)

	RulesGeneratedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crate2gn_rules_generated_total",
			Help: "Number of generated rules by rule kind",
		},
		[]string{"kind"},
	)

	FilesWrittenCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crate2gn_files_total",
			Help: "Number of rule documents by outcome (written, unchanged, stale)",
		},
		[]string{"outcome"},
	)

	GenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crate2gn_generate_duration_seconds",
			Help:    "Duration of a whole generation run in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
	)

	LastGenerateEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crate2gn_last_generate_end_timestamp",
			Help: "Unix timestamp of when the last generation run ended",
		},
	)
)

func RuleGenerated(kind string) {
	RulesGeneratedCount.WithLabelValues(kind).Inc()
}

func PackageFailed(pkg, errorType string) {
	PackageFailedCount.WithLabelValues(pkg, errorType).Inc()
}

func FileProcessed(outcome string) {
	FilesWrittenCount.WithLabelValues(outcome).Inc()
}

func Generated(startTime time.Time) {
	GenerateDuration.Observe(time.Since(startTime).Seconds())
	LastGenerateEnd.SetToCurrentTime()
}

// WriteToTextfile writes every registered metric to path in the Prometheus
// text format, for collection by the node exporter's textfile collector.
func WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
