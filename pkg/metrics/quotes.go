package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QuoteMetrics records price quote computations.
type QuoteMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewQuoteMetrics registers the quote metrics on the provided registerer.
func NewQuoteMetrics(reg prometheus.Registerer) *QuoteMetrics {
	if reg == nil {
		return &QuoteMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fabshop_quote_duration_seconds",
		Help:    "Duration of price quote computations in seconds.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"outcome"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabshop_quotes_total",
		Help: "Price quotes computed, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, total)
	return &QuoteMetrics{duration: duration, total: total}
}

// Observe records one quote with its outcome (ok or an error code).
func (q *QuoteMetrics) Observe(outcome string, duration time.Duration) {
	if q == nil || q.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	q.duration.WithLabelValues(label).Observe(duration.Seconds())
	q.total.WithLabelValues(label).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
