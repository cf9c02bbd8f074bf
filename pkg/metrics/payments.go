package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentEventMetrics counts webhook intake and state machine outcomes.
type PaymentEventMetrics struct {
	events   *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

func NewPaymentEventMetrics(reg prometheus.Registerer) *PaymentEventMetrics {
	if reg == nil {
		return &PaymentEventMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabshop_payment_events_total",
		Help: "Payment events applied to orders, by event type and outcome.",
	}, []string{"type", "outcome"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fabshop_webhook_rejections_total",
		Help: "Webhook deliveries rejected before processing.",
	}, []string{"reason"})
	reg.MustRegister(events, rejected)
	return &PaymentEventMetrics{events: events, rejected: rejected}
}

func (p *PaymentEventMetrics) IncEvent(eventType, outcome string) {
	if p == nil || p.events == nil {
		return
	}
	p.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (p *PaymentEventMetrics) IncRejected(reason string) {
	if p == nil || p.rejected == nil {
		return
	}
	p.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
