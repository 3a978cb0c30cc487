package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "votes_cast_total",
		Help:      "Votes cast, by vote type.",
	}, []string{"type"})

	challengesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "challenges_created_total",
		Help:      "Challenges opened.",
	})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "challenge_transitions_total",
		Help:      "Challenge status transitions, by new status.",
	}, []string{"to"})

	propagationPasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "veracity",
		Name:      "propagation_passes_total",
		Help:      "Completed propagation recomputations.",
	})

	propagationChanged = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "veracity",
		Name:      "propagation_changed_claims",
		Help:      "Claims whose confidence changed per recomputation.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	propagationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "veracity",
		Name:      "propagation_duration_seconds",
		Help:      "Wall time per propagation recomputation.",
		Buckets:   prometheus.DefBuckets,
	})
)
