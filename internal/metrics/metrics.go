// Package metrics defines the Prometheus collectors of the ingest service.
package metrics

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels of ingest_requests_total.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeFatal   = "fatal"
)

// Metrics holds the service collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	filesProduced *prometheus.CounterVec
	bytesAdmitted prometheus.Counter
	duration      prometheus.Histogram
}

// New registers the collectors in a fresh registry, alongside the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_requests_total",
			Help: "Ingest calls by outcome (success, error, fatal).",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_fallbacks_total",
			Help: "Unpack attempts that fell back to storing the upload as a single file.",
		}, []string{"reason"}),
		filesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_files_produced_total",
			Help: "Files produced by ingest calls, by method.",
		}, []string{"kind"}),
		bytesAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_bytes_admitted_total",
			Help: "Bytes of produced files admitted by the guard.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Duration of ingest calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.fallbacks,
		m.filesProduced,
		m.bytesAdmitted,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveResult records one finished ingest call.
func (m *Metrics) ObserveResult(res *ingest.Result, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())

	if !res.Succeeded() {
		m.requests.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.requests.WithLabelValues(OutcomeSuccess).Inc()

	if res.FallbackReason != "" {
		m.fallbacks.WithLabelValues(res.FallbackReason).Inc()
	}
	m.filesProduced.WithLabelValues(string(res.Method)).Add(float64(len(res.Files)))
	m.bytesAdmitted.Add(float64(res.TotalSize()))
}

// ObserveFatal records an ingest call that failed with an error.
func (m *Metrics) ObserveFatal(elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())
	m.requests.WithLabelValues(OutcomeFatal).Inc()
}

// RegisterGaugeFunc exposes a value sampled at scrape time, such as the
// number of active uploads.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, fn))
}
