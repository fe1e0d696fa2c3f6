// Package metrics holds the Prometheus collectors for the persona coach services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "persona_coach"

// Metrics holds Prometheus metrics for a service
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec

	Predictions     *prometheus.CounterVec
	LLMCalls        *prometheus.CounterVec
	EmbeddingCache  *prometheus.CounterVec
	ChunksIndexed   prometheus.Counter
	IndexJobResults *prometheus.CounterVec
}

// New creates a metrics instance registered on its own registry, together
// with the Go runtime and process collectors.
func New(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(serviceName, reg)
}

// NewWithRegistry creates a metrics instance on reg.
func NewWithRegistry(serviceName string, reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
			[]string{"method"},
		),
		Predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "predictions_total",
				Help:      "Persona predictions by resulting persona or error kind",
			},
			[]string{"outcome"},
		),
		LLMCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "llm_calls_total",
				Help:      "LLM completions by provider and status",
			},
			[]string{"provider", "status"},
		),
		EmbeddingCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "embedding_cache_total",
				Help:      "Embedding cache lookups by result",
			},
			[]string{"result"},
		),
		ChunksIndexed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "chunks_indexed_total",
				Help:      "Document chunks written to the vector store",
			},
		),
		IndexJobResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "index_jobs_total",
				Help:      "Finished indexing jobs by status",
			},
			[]string{"status"},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	m.RequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveLLM records one LLM completion.
func (m *Metrics) ObserveLLM(provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMCalls.WithLabelValues(provider, status).Inc()
}
