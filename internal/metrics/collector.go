// Package metrics exposes Prometheus metrics for training runs.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/quantum"
)

// Collector owns a registry and the run metrics registered on it.
type Collector struct {
	registry *prometheus.Registry

	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	episodesTotal     prometheus.Counter
	goalsTotal        prometheus.Counter
	episodeSteps      prometheus.Histogram
	backendCallsTotal *prometheus.CounterVec
	backendLatency    prometheus.Histogram
	saturatedPairs    prometheus.Gauge
	queueDepth        prometheus.Gauge

	log zerolog.Logger
}

// NewCollector creates a collector with its own registry, including Go
// runtime and process collectors.
func NewCollector(namespace string, log zerolog.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Training runs by final status",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished training runs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		episodesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Episodes completed across all runs",
		}),
		goalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goals_total",
			Help:      "Episodes that reached the goal state",
		}),
		episodeSteps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_steps",
			Help:      "Recorded steps per episode",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		}),
		backendCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Backend executions by result",
		}, []string{"result"}),
		backendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Backend execution latency",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		saturatedPairs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "saturated_pairs",
			Help:      "Saturated state-action pairs of the most recent run",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Runs waiting to be executed",
		}),
		log: log.With().Str("component", "metrics").Logger(),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordEpisode counts one finished episode.
func (c *Collector) RecordEpisode(steps int, goalReached bool) {
	c.episodesTotal.Inc()
	if goalReached {
		c.goalsTotal.Inc()
	}
	c.episodeSteps.Observe(float64(steps))
}

// RecordRun counts a finished run with its status and duration.
func (c *Collector) RecordRun(status string, duration time.Duration, saturated int) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
	c.saturatedPairs.Set(float64(saturated))
	c.log.Debug().
		Str("status", status).
		Dur("duration", duration).
		Int("saturated_pairs", saturated).
		Msg("Recorded run")
}

// SetQueueDepth reports the number of waiting runs.
func (c *Collector) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// RecordBackendCall counts a backend execution.
func (c *Collector) RecordBackendCall(err error, latency time.Duration) {
	result := "success"
	switch {
	case err == nil:
	case quantum.IsTransient(err):
		result = "transient_error"
	default:
		result = "error"
	}
	c.backendCallsTotal.WithLabelValues(result).Inc()
	c.backendLatency.Observe(latency.Seconds())
}

// InstrumentedBackend records every execution of an inner backend.
type InstrumentedBackend struct {
	inner     quantum.Backend
	collector *Collector
}

// Instrument wraps inner so its calls are counted by c.
func (c *Collector) Instrument(inner quantum.Backend) *InstrumentedBackend {
	return &InstrumentedBackend{inner: inner, collector: c}
}

// Execute delegates to the inner backend.
func (b *InstrumentedBackend) Execute(ctx context.Context, circuit *quantum.Circuit, shots int) (quantum.Counts, error) {
	start := time.Now()
	counts, err := b.inner.Execute(ctx, circuit, shots)
	b.collector.RecordBackendCall(err, time.Since(start))
	return counts, err
}
