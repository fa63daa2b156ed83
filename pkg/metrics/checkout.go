package metrics

import "github.com/prometheus/client_golang/prometheus"

// Verification outcomes.
const (
	OutcomeVerified          = "verified"
	OutcomeAlreadyVerified   = "already_verified"
	OutcomeSignatureMismatch = "signature_mismatch"
	OutcomeOrderNotFound     = "order_not_found"
	OutcomeStateConflict     = "state_conflict"
	OutcomeError             = "error"
)

// CheckoutMetrics counts order, settlement and refund activity.
type CheckoutMetrics struct {
	ordersCreated *prometheus.CounterVec
	ordersReused  *prometheus.CounterVec
	ordersFailed  *prometheus.CounterVec
	verifications *prometheus.CounterVec
	refunds       *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Gateway orders created, by source.",
		}, []string{"source"}),
		ordersReused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_reused_total",
			Help:      "Pending orders handed back instead of creating a new gateway order.",
		}, []string{"source"}),
		ordersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_failed_total",
			Help:      "Orders moved to failed, by reason.",
		}, []string{"reason"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Payment verification attempts, by outcome.",
		}, []string{"outcome"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_decisions_total",
			Help:      "Refund requests and reviews, by status.",
		}, []string{"status"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_webhooks_total",
			Help:      "Gateway webhook deliveries, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.ordersCreated, m.ordersReused, m.ordersFailed, m.verifications, m.refunds, m.webhooks)
	return m
}

func (m *CheckoutMetrics) OrderCreated(source string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *CheckoutMetrics) OrderReused(source string) {
	if m == nil || m.ordersReused == nil {
		return
	}
	m.ordersReused.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *CheckoutMetrics) OrderFailed(reason string) {
	if m == nil || m.ordersFailed == nil {
		return
	}
	m.ordersFailed.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *CheckoutMetrics) Verification(outcome string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) Refund(status string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *CheckoutMetrics) Webhook(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
