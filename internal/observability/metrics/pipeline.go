package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics tracks per-file processing outcomes. Everything hangs
// off a private registry so tests and multi-instance setups never collide
// on the global one.
type PipelineMetrics struct {
	registry *prometheus.Registry

	filesTotal    *prometheus.CounterVec
	fileDuration  *prometheus.HistogramVec
	filesInFlight prometheus.Gauge
	tagCount      *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photostock",
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Total files handled by the pipeline, by outcome.",
		},
		[]string{"service", "mode", "outcome"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photostock",
			Subsystem: "pipeline",
			Name:      "file_duration_seconds",
			Help:      "Per-file processing duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "mode", "outcome"},
	)
	filesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "photostock",
			Subsystem: "pipeline",
			Name:      "files_in_flight",
			Help:      "Number of files currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	tagCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photostock",
			Subsystem: "pipeline",
			Name:      "tags_per_image",
			Help:      "Distribution of generated keywords per stored image.",
			Buckets:   []float64{0, 5, 10, 15, 20, 25, 30, 40},
		},
		[]string{"service"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photostock",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photostock",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Whole-run duration in seconds by mode.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
		[]string{"service", "mode"},
	)

	registry.MustRegister(filesTotal, fileDuration, filesInFlight, tagCount, runsTotal, runDuration)

	return &PipelineMetrics{
		registry:      registry,
		filesTotal:    filesTotal,
		fileDuration:  fileDuration,
		filesInFlight: filesInFlight,
		tagCount:      tagCount,
		runsTotal:     runsTotal,
		runDuration:   runDuration,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartFile() {
	m.filesInFlight.Inc()
}

// FinishFile records one file with its outcome: processed, updated,
// skipped, or failed.
func (m *PipelineMetrics) FinishFile(service, mode, outcome string, duration time.Duration) {
	m.filesInFlight.Dec()
	m.filesTotal.WithLabelValues(service, mode, outcome).Inc()
	m.fileDuration.WithLabelValues(service, mode, outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveTagCount(service string, count int) {
	if count < 0 {
		return
	}
	m.tagCount.WithLabelValues(service).Observe(float64(count))
}

func (m *PipelineMetrics) FinishRun(service, mode string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(service, mode, status).Inc()
	m.runDuration.WithLabelValues(service, mode).Observe(duration.Seconds())
}
