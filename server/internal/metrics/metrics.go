package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

const namespace = "stewardlens"

// Metrics owns a private registry with the server's collectors.
type Metrics struct {
	reg *prometheus.Registry

	healthScore     *prometheus.GaugeVec
	subScore        *prometheus.GaugeVec
	assessments     *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers all collectors, including the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		healthScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_score",
			Help:      "Latest financial health score per congregation.",
		}, []string{"source_id"}),
		subScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_subscore",
			Help:      "Latest normalised sub-score per congregation and dimension.",
		}, []string{"source_id", "dimension"}),
		assessments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessments computed, by label.",
		}, []string{"label"}),
		recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendations emitted, by priority.",
		}, []string{"priority"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "REST API requests by handler, method and status code.",
		}, []string{"handler", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "REST API latency by handler and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "method"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe records an assessed snapshot. Unevaluated snapshots are ignored.
func (m *Metrics) Observe(_ context.Context, snap *wire.Snapshot) {
	if !snap.Evaluated() {
		return
	}
	m.healthScore.WithLabelValues(snap.SourceID).Set(float64(snap.Score))
	for _, d := range finhealth.Breakdown(snap.SubScores) {
		m.subScore.WithLabelValues(snap.SourceID, d.Key).Set(d.SubScore)
	}
	m.assessments.WithLabelValues(snap.Label.Slug()).Inc()
	for _, r := range snap.Recommendations {
		m.recommendations.WithLabelValues(string(r.Priority)).Inc()
	}
}

// Forget drops the per-congregation series for sourceID.
func (m *Metrics) Forget(sourceID string) {
	m.healthScore.DeleteLabelValues(sourceID)
	m.subScore.DeletePartialMatch(prometheus.Labels{"source_id": sourceID})
}

// Instrument wraps next with request counting and latency measurement
// under the given handler name.
func (m *Metrics) Instrument(handler string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": handler}
	return promhttp.InstrumentHandlerDuration(
		m.httpDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.httpRequests.MustCurryWith(labels), next),
	)
}
