// Package metrics holds the Prometheus instruments for the scan pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showfinder",
		Name:      "scans_total",
		Help:      "Completed scan cycles by outcome",
	}, []string{"outcome"})

	PostsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "showfinder",
		Name:      "posts_processed_total",
		Help:      "Posts run through classification",
	})

	ShowsFound = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "showfinder",
		Name:      "shows_found_total",
		Help:      "Show records kept after extraction and filtering",
	})

	TextRecoveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showfinder",
		Name:      "text_recoveries_total",
		Help:      "Image text recovery attempts by engine and status",
	}, []string{"engine", "status"})

	ScanDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "showfinder",
		Name:      "scan_duration_seconds",
		Help:      "Time spent on a full scan cycle",
	})
)

func init() {
	prometheus.MustRegister(
		ScansTotal, PostsProcessed, ShowsFound,
		TextRecoveries, ScanDuration,
	)
}
