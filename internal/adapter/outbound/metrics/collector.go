// Package metrics exposes tool call and catalogue measurements to Prometheus.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements usecase.Metrics and openapi.FallbackRecorder.
// Every Collector owns its registry, so several can live in one process.
type Collector struct {
	registry *prometheus.Registry

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	catalogueTools   prometheus.Gauge
	schemaFallbacks  *prometheus.CounterVec

	logger *slog.Logger
}

// NewCollector creates a Collector whose metric names start with namespace.
func NewCollector(namespace string, logger *slog.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls by outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds, upstream request included",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
		catalogueTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalogue_tools",
				Help:      "Number of tools in the current catalogue",
			},
		),
		schemaFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_fallbacks_total",
				Help:      "Schema nodes that could not be translated faithfully",
			},
			[]string{"kind"},
		),
		logger: logger.With("component", "metrics"),
	}
}

// ObserveToolCall records one finished tool call.
func (c *Collector) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// SetCatalogueSize records the size of the catalogue after a sync.
func (c *Collector) SetCatalogueSize(n int) {
	c.catalogueTools.Set(float64(n))
}

// RecordFallback counts a schema translation anomaly.
func (c *Collector) RecordFallback(kind string) {
	c.schemaFallbacks.WithLabelValues(kind).Inc()
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(c.logger.Handler(), slog.LevelError),
	})
}
