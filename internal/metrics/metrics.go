// Package metrics exposes the Protection Worker's Prometheus gauges,
// grounded on cuemby-warren/pkg/metrics/metrics.go's package-level
// metric vars plus init()-time registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ImagesProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lore_anchor_worker_images_processed_total",
		Help: "Total images that completed the protection pipeline successfully.",
	})

	ImagesFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lore_anchor_worker_images_failed_total",
		Help: "Total images whose pipeline attempt ended in a terminal failure.",
	})

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "lore_anchor_worker_stage_duration_seconds",
			Help: "Duration of each pipeline stage.",
		},
		[]string{"stage"},
	)

	DeadLettersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lore_anchor_worker_dead_letters_total",
		Help: "Total envelopes diverted to the dead-letter queue.",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lore_anchor_queue_depth",
		Help: "Best-effort depth of the work queue as last observed.",
	})
)

func init() {
	prometheus.MustRegister(ImagesProcessedTotal)
	prometheus.MustRegister(ImagesFailedTotal)
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(DeadLettersTotal)
	prometheus.MustRegister(QueueDepth)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
