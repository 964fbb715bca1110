package notification

import "github.com/prometheus/client_golang/prometheus"

var (
	enqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecopoints",
		Subsystem: "notification",
		Name:      "enqueued_total",
		Help:      "Notification tasks handed to the queue, by task type and outcome.",
	}, []string{"task", "outcome"})

	deliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecopoints",
		Subsystem: "notification",
		Name:      "delivered_total",
		Help:      "Notifications written to inboxes by the worker, by kind.",
	}, []string{"kind"})
)

const (
	outcomeEnqueued = "enqueued"
	outcomeFailed   = "failed"
	outcomeDisabled = "disabled"
)

func init() {
	prometheus.MustRegister(enqueuedTotal, deliveredTotal)
}
