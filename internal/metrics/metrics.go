// Package metrics expone metricas Prometheus del servicio de chat.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa contadores e histogramas de HTTP y de llamadas al LLM.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CompletionsTotal   *prometheus.CounterVec
	CompletionDuration prometheus.Histogram

	ExchangesTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registra las metricas en reg. Con reg nil usa un registry propio.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CompletionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_llm_completions_total",
				Help: "Total number of completion calls by outcome",
			},
			[]string{"outcome"},
		),
		CompletionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chat_llm_completion_duration_seconds",
				Help:    "Duration of completion calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_exchanges_total",
				Help: "Total number of send-message exchanges by result",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}
}

// RecordHTTPRequest registra una request HTTP.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveCompletion implementa llm.CompletionObserver.
func (m *Metrics) ObserveCompletion(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(outcome).Inc()
	m.CompletionDuration.Observe(duration.Seconds())
}

// RecordExchange registra el resultado de un send-message.
func (m *Metrics) RecordExchange(result string) {
	if m == nil {
		return
	}
	m.ExchangesTotal.WithLabelValues(result).Inc()
}

// Handler devuelve el handler de exposicion para /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
