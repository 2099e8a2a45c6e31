package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics tracks order lifecycle transitions and the stock reservation
// step that gates approvals.
type OrderMetrics struct {
	transitions         *prometheus.CounterVec
	reservationFailures *prometheus.CounterVec
	reservationDuration prometheus.Histogram
	pending             prometheus.Gauge
}

// NewOrderMetrics registers the order metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by kind.",
	}, []string{"transition"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservation_failures_total",
		Help: "Stock reservations that aborted an approval.",
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reservation_duration_seconds",
		Help:    "Time spent validating and deducting stock for an approval.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orders_pending",
		Help: "Orders currently waiting for an admin decision.",
	})
	reg.MustRegister(transitions, failures, duration, pending)
	return &OrderMetrics{
		transitions:         transitions,
		reservationFailures: failures,
		reservationDuration: duration,
		pending:             pending,
	}
}

func (m *OrderMetrics) IncTransition(transition string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(transition)).Inc()
}

func (m *OrderMetrics) IncReservationFailure(reason string) {
	if m == nil || m.reservationFailures == nil {
		return
	}
	m.reservationFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *OrderMetrics) ObserveReservation(d time.Duration) {
	if m == nil || m.reservationDuration == nil {
		return
	}
	m.reservationDuration.Observe(d.Seconds())
}

func (m *OrderMetrics) SetPending(count int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
