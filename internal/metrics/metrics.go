package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// All metrics are low-cardinality: media_type and outcome only, never
// per-camera or per-file labels.

var (
	// FilesProcessedTotal counts terminal pipeline outcomes per artifact.
	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentrycam_files_processed_total",
			Help: "Terminal pipeline outcomes by media type",
		},
		[]string{"media_type", "outcome"},
	)

	// DescribeLatency tracks end-to-end describer call latency.
	DescribeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentrycam_describe_latency_seconds",
			Help:    "Vision describe call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"media_type"},
	)

	// QueueDepth is the number of artifacts waiting in the ingest queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentrycam_queue_depth",
			Help: "Artifacts waiting in the ingest queue",
		},
	)

	// AlertsDerivedTotal counts alert flags raised per kind.
	AlertsDerivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentrycam_alerts_derived_total",
			Help: "Alert flags derived from descriptions by kind",
		},
		[]string{"kind"},
	)

	// WatcherEventsTotal counts filesystem notifications after coalescing.
	WatcherEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentrycam_watcher_events_total",
			Help: "Filesystem events forwarded to the pipeline",
		},
	)
)

// Helper functions for metrics recording

func RecordOutcome(mediaType, outcome string) {
	FilesProcessedTotal.WithLabelValues(mediaType, outcome).Inc()
}

func RecordDescribeLatency(mediaType string, seconds float64) {
	DescribeLatency.WithLabelValues(mediaType).Observe(seconds)
}

func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}

func RecordAlerts(kinds []string) {
	for _, k := range kinds {
		AlertsDerivedTotal.WithLabelValues(k).Inc()
	}
}

func RecordWatcherEvent() {
	WatcherEventsTotal.Inc()
}

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
