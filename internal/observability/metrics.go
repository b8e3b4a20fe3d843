package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cart_analytics"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	facts            prometheus.Gauge
	rejections       *prometheus.GaugeVec
	cacheHits        prometheus.Counter
	sseStreams       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Fact assembly runs by outcome.",
		}, []string{"outcome"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of load, assembly and report precompute.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		facts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facts",
			Help:      "Order facts in the current snapshot.",
		}),
		rejections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rejected_rows",
			Help:      "Raw rows rejected in the current snapshot by entity.",
		}, []string{"entity"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fact_cache_hits_total",
			Help:      "Loads served from the fact cache.",
		}),
		sseStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_streams",
			Help:      "Open server-sent event streams.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.pipelineRuns,
		m.pipelineDuration,
		m.facts,
		m.rejections,
		m.cacheHits,
		m.sseStreams,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObservePipeline records one finished run. rejected maps entity to count.
func (m *Metrics) ObservePipeline(d time.Duration, facts int, rejected map[string]int) {
	m.pipelineRuns.WithLabelValues("ok").Inc()
	m.pipelineDuration.Observe(d.Seconds())
	m.facts.Set(float64(facts))
	m.rejections.Reset()
	for entity, n := range rejected {
		m.rejections.WithLabelValues(entity).Set(float64(n))
	}
}

func (m *Metrics) PipelineFailed() {
	m.pipelineRuns.WithLabelValues("error").Inc()
}

func (m *Metrics) CacheHit() {
	m.cacheHits.Inc()
}

func (m *Metrics) StreamOpened() { m.sseStreams.Inc() }

func (m *Metrics) StreamClosed() { m.sseStreams.Dec() }

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
