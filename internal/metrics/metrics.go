// Package metrics records pipeline stage latency and outcomes for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chaoscast"

// Pipeline stage labels
const (
	StageUpload     = "upload"
	StageSelect     = "select"
	StagePreprocess = "preprocess"
	StageTrain      = "train"
	StageForecast   = "forecast"
)

// Recorder owns a registry with the pipeline collectors
type Recorder struct {
	registry *prometheus.Registry

	stageLatency   *prometheus.HistogramVec
	stageErrors    *prometheus.CounterVec
	trainLoss      *prometheus.GaugeVec
	forecastPoints prometheus.Counter
	changePoints   prometheus.Histogram
}

// NewRecorder creates a recorder. Process and Go runtime collectors are
// registered alongside the pipeline metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages",
				Buckets:   []float64{.005, .025, .1, .5, 1, 5, 30, 120, 600},
			},
			[]string{"stage"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_errors_total",
				Help:      "Failed pipeline stages by error code",
			},
			[]string{"stage", "code"},
		),
		trainLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "final_loss",
				Help:      "Final training loss of the last run per architecture",
			},
			[]string{"model"},
		),
		forecastPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "forecast_points_total",
			Help:      "Forecast values produced",
		}),
		changePoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "change_points",
			Help:      "Change points found per preprocess run",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		}),
	}

	r.registry.MustRegister(
		r.stageLatency,
		r.stageErrors,
		r.trainLoss,
		r.forecastPoints,
		r.changePoints,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveStage records the duration of a stage that started at start. A
// non-empty code counts the stage as failed.
func (r *Recorder) ObserveStage(stage string, start time.Time, code string) {
	if r == nil {
		return
	}
	r.stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if code != "" {
		r.stageErrors.WithLabelValues(stage, code).Inc()
	}
}

// SetTrainLoss records the final loss of a training run
func (r *Recorder) SetTrainLoss(model string, loss float64) {
	if r == nil {
		return
	}
	r.trainLoss.WithLabelValues(model).Set(loss)
}

// AddForecastPoints counts produced forecast values
func (r *Recorder) AddForecastPoints(n int) {
	if r == nil {
		return
	}
	r.forecastPoints.Add(float64(n))
}

// ObserveChangePoints records how many change points a run found
func (r *Recorder) ObserveChangePoints(n int) {
	if r == nil {
		return
	}
	r.changePoints.Observe(float64(n))
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
