package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order workflow outcomes.
type OrderMetrics struct {
	created       *prometheus.CounterVec
	payments      *prometheus.CounterVec
	numberRetries prometheus.Counter
	transitions   *prometheus.CounterVec
}

// NewOrderMetrics registers the order workflow metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders created by type and initial status.",
	}, []string{"type", "status"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_payments_applied_total",
		Help:      "Gateway payment log entries applied to orders.",
	}, []string{"gateway", "kind"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_number_retries_total",
		Help:      "Order number collisions that forced a retry.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_transitions_total",
		Help:      "Order status transitions by target status.",
	}, []string{"status"})
	reg.MustRegister(created, payments, retries, transitions)
	return &OrderMetrics{
		created:       created,
		payments:      payments,
		numberRetries: retries,
		transitions:   transitions,
	}
}

func (m *OrderMetrics) IncCreated(orderType, status string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(orderType), normalizeLabel(status)).Inc()
}

func (m *OrderMetrics) IncPayment(gateway, kind string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(gateway), normalizeLabel(kind)).Inc()
}

func (m *OrderMetrics) IncNumberRetry() {
	if m == nil || m.numberRetries == nil {
		return
	}
	m.numberRetries.Inc()
}

func (m *OrderMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}
