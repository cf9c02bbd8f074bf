package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DocumentMetrics records document requests and renders.
type DocumentMetrics struct {
	requests *prometheus.CounterVec
	renders  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewDocumentMetrics(reg prometheus.Registerer) *DocumentMetrics {
	if reg == nil {
		return &DocumentMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabshop_document_requests_total",
		Help: "Document requests, by type and result (memoized, rendered, failed).",
	}, []string{"type", "result"})
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabshop_document_renders_total",
		Help: "Document renders performed, by type.",
	}, []string{"type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fabshop_document_render_duration_seconds",
		Help:    "Duration of render and upload in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	reg.MustRegister(requests, renders, duration)
	return &DocumentMetrics{requests: requests, renders: renders, duration: duration}
}

func (m *DocumentMetrics) IncRequest(docType, result string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(docType), normalizeLabel(result)).Inc()
}

func (m *DocumentMetrics) ObserveRender(docType string, duration time.Duration) {
	if m == nil || m.renders == nil {
		return
	}
	label := normalizeLabel(docType)
	m.renders.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(duration.Seconds())
}
