package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Email delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	// LoanTransitions counts committed lifecycle transitions.
	LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_loan_transitions_total",
		Help: "Total number of committed book request transitions",
	}, []string{"transition"})

	// RemindersSent counts reminders delivered by the sweep, by kind (due_soon, overdue).
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_reminders_sent_total",
		Help: "Total number of due-date reminders sent",
	}, []string{"kind"})

	// ReminderSweepDuration records how long one sweep takes.
	ReminderSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookswap_reminder_sweep_duration_seconds",
		Help:    "Duration of a reminder sweep in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// EmailDeliveries counts email attempts by template kind and outcome.
	EmailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_email_deliveries_total",
		Help: "Total number of email deliveries by kind and outcome",
	}, []string{"kind", "outcome"})

	// NotificationsPublished counts real-time notification publishes by result.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookswap_notifications_published_total",
		Help: "Total number of notifications published to the real-time channel",
	}, []string{"result"})
)

// RecordTransition increments the transition counter.
func RecordTransition(transition string) {
	LoanTransitions.WithLabelValues(transition).Inc()
}

// RecordEmail increments the delivery counter for kind.
func RecordEmail(kind, outcome string) {
	EmailDeliveries.WithLabelValues(kind, outcome).Inc()
}

// ObserveSweep returns a func that records the sweep duration when called (e.g. defer).
func ObserveSweep() func() {
	start := time.Now()
	return func() {
		ReminderSweepDuration.Observe(time.Since(start).Seconds())
	}
}
