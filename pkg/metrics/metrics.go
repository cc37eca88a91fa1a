package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the payment counters. All vectors are labelled by gateway.
type Metrics struct {
	Initialized             *prometheus.CounterVec
	Completed               *prometheus.CounterVec
	Failed                  *prometheus.CounterVec
	Refunded                *prometheus.CounterVec
	DuplicateCallbacks      *prometheus.CounterVec
	CriticalInconsistencies prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Initialized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_payments_initialized_total",
			Help: "Payment attempts sent to a gateway.",
		}, []string{"gateway"}),
		Completed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_payments_completed_total",
			Help: "Payments verified and settled.",
		}, []string{"gateway"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_payments_failed_total",
			Help: "Payments that ended in a failed or cancelled state.",
		}, []string{"gateway"}),
		Refunded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_payments_refunded_total",
			Help: "Completed payments refunded through the gateway.",
		}, []string{"gateway"}),
		DuplicateCallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paycore_callback_duplicates_total",
			Help: "Callbacks short-circuited because the record was already completed.",
		}, []string{"gateway"}),
		CriticalInconsistencies: factory.NewCounter(prometheus.CounterOpts{
			Name: "paycore_critical_inconsistencies_total",
			Help: "Settled payments whose order reconciliation failed.",
		}),
	}
}
