package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReminderMetrics counts reminder dispatch attempts and skipped carts.
type ReminderMetrics struct {
	dispatched *prometheus.CounterVec
	skipped    *prometheus.CounterVec
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	if reg == nil {
		return &ReminderMetrics{}
	}
	m := &ReminderMetrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminder dispatches by channel and outcome.",
		}, []string{"channel", "outcome"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_skips_total",
			Help:      "Carts skipped by the reminder planner, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.dispatched, m.skipped)
	return m
}

// IncDispatch records one send attempt.
func (m *ReminderMetrics) IncDispatch(channel, outcome string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(labelOrUnknown(channel), labelOrUnknown(outcome)).Inc()
}

func (m *ReminderMetrics) IncSkip(reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(labelOrUnknown(reason)).Inc()
}
