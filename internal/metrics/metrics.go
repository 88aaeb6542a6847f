package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "Checkout state transitions by source and target state.",
	}, []string{"from", "to"})

	Confirms = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_confirms_total",
		Help: "Confirm attempts by result.",
	}, []string{"result"})

	PaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Provider payment outcomes by method and result.",
	}, []string{"method", "result"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "checkout_active_sessions",
		Help: "Currently open checkout sessions.",
	})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_status_poll_duration_seconds",
		Help:    "Duration of reservation status polls.",
		Buckets: prometheus.DefBuckets,
	})
)

// ObservePoll records one status poll.
func ObservePoll(d time.Duration) {
	PollDuration.Observe(d.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordPaymentOutcome increments the outcome counter for a provider attempt.
func RecordPaymentOutcome(method string, success bool) {
	PaymentOutcomes.WithLabelValues(method, result(success)).Inc()
}
