package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routerbuild_build_failed_total",
			Help: "Number of times the pipeline has failed to build",
		},
		[]string{"error_type"},
	)

	BuildCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routerbuild_build_count_total",
			Help: "Total number of pipeline runs",
		},
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routerbuild_build_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
	)

	LastBuildStart = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routerbuild_last_build_start_timestamp",
			Help: "Unix timestamp of when the last pipeline run started",
		},
	)

	LastBuildEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routerbuild_last_build_end_timestamp",
			Help: "Unix timestamp of when the last pipeline run ended",
		},
	)

	OutputFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routerbuild_output_files",
			Help: "Number of files in the last published output tree",
		},
	)

	NodeFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routerbuild_node_failed_total",
			Help: "Number of failed pipeline node executions",
		},
		[]string{"node", "error_type"},
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routerbuild_node_duration_seconds",
			Help:    "Pipeline node execution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		},
		[]string{"node"},
	)
)

// WriteFile writes all registered metrics to path in the text exposition
// format, for node_exporter's textfile collector.
func WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
