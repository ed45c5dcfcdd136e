package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "azmonitor"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

var (
	reportDurationBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1200, 1800}

	// Report run metrics
	ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "report_duration_seconds",
		Help:      "Time taken for a monitoring report run to complete.",
		Buckets:   reportDurationBuckets,
	}, []string{"report"})

	ReportRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_runs_total",
		Help:      "Count of report executions.",
	}, []string{"report", "status"})

	ReportLastSuccessTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "report_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful report run.",
	}, []string{"report"})

	// Item metrics
	ReportItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_items_total",
		Help:      "Number of enumerated items per report level and outcome.",
	}, []string{"report", "level", "outcome"})
)

// ObserveItems adds per-level item counts for one report.
func ObserveItems(report, level string, processed, failed int) {
	if processed > 0 {
		ReportItemsTotal.WithLabelValues(report, level, OutcomeProcessed).Add(float64(processed))
	}
	if failed > 0 {
		ReportItemsTotal.WithLabelValues(report, level, OutcomeFailed).Add(float64(failed))
	}
}

// ObserveSkipped counts items deliberately left out of a run.
func ObserveSkipped(report, level string) {
	ReportItemsTotal.WithLabelValues(report, level, OutcomeSkipped).Inc()
}
