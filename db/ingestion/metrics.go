package ingestion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	costerrors "aws-cost-sync/pkg/errors"
)

const (
	prometheusMetricNamespace = "aws_cost_sync"

	modeUpsert = "upsert"
	modeInsert = "insert"
)

var (
	runPrometheusMetricLabels = []string{"mode"}

	runTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "runs_total",
			Help:      "Number of ingestion runs started.",
		},
		runPrometheusMetricLabels,
	)

	runFailedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "runs_failed_total",
			Help:      "Number of ingestion runs that aborted, by error code.",
		},
		[]string{"mode", "code"},
	)

	recordsWrittenCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "records_written_total",
			Help:      "Cost records upserted or inserted.",
		},
		runPrometheusMetricLabels,
	)

	recordsSkippedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "records_skipped_total",
			Help:      "Cost records dropped for zero amortized cost.",
		},
		runPrometheusMetricLabels,
	)

	runDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of an ingestion run.",
			Buckets:   []float64{1.0, 5.0, 15.0, 60.0, 300.0},
		},
		runPrometheusMetricLabels,
	)
)

func init() {
	prometheus.MustRegister(runTotalCounter)
	prometheus.MustRegister(runFailedCounter)
	prometheus.MustRegister(recordsWrittenCounter)
	prometheus.MustRegister(recordsSkippedCounter)
	prometheus.MustRegister(runDurationHistogram)
}

func recordSuccess(mode string, start time.Time) {
	runTotalCounter.WithLabelValues(mode).Inc()
	runDurationHistogram.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func recordFailure(mode string, err error, start time.Time) {
	runTotalCounter.WithLabelValues(mode).Inc()
	runFailedCounter.WithLabelValues(mode, errorCode(err)).Inc()
	runDurationHistogram.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func recordRecords(mode string, written, skipped int) {
	recordsWrittenCounter.WithLabelValues(mode).Add(float64(written))
	recordsSkippedCounter.WithLabelValues(mode).Add(float64(skipped))
}

func errorCode(err error) string {
	switch {
	case costerrors.IsUpstreamQuery(err):
		return costerrors.ErrCodeUpstreamQuery
	case costerrors.IsStorage(err):
		return costerrors.ErrCodeStorage
	case costerrors.IsFormat(err):
		return costerrors.ErrCodeFormat
	default:
		return "UNKNOWN"
	}
}
