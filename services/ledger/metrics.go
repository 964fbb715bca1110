package ledger

import "github.com/prometheus/client_golang/prometheus"

var (
	awardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecopoints",
		Subsystem: "ledger",
		Name:      "awards_total",
		Help:      "Award calls by outcome.",
	}, []string{"outcome"})

	pointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecopoints",
		Subsystem: "ledger",
		Name:      "points_awarded_total",
		Help:      "Points applied to aggregates, labeled by activity type.",
	}, []string{"activity_type"})

	badgesGranted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecopoints",
		Subsystem: "ledger",
		Name:      "badges_granted_total",
		Help:      "Badges granted by award evaluation.",
	})

	awardDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ecopoints",
		Subsystem: "ledger",
		Name:      "award_duration_seconds",
		Help:      "Time spent in Award, including validation.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	pendingAwards = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecopoints",
		Subsystem: "ledger",
		Name:      "pending_awards",
		Help:      "Activity records still waiting for their points past the stuck threshold.",
	})
)

const (
	outcomeAccepted             = "accepted"
	outcomeInvalidActivityType  = "invalid_activity_type"
	outcomeInvalidPoints        = "invalid_points"
	outcomeInvalidMetadata      = "invalid_metadata"
	outcomeUserNotFound         = "user_not_found"
	outcomeRecordUnavailable    = "record_unavailable"
	outcomeAggregateUnavailable = "aggregate_unavailable"
)

func init() {
	prometheus.MustRegister(awardsTotal, pointsAwarded, badgesGranted, awardDuration, pendingAwards)
}
