// Package metrics exposes Prometheus counters for the achievement
// pipeline. Register nothing here manually; promauto wires everything
// into the default registry served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationPasses counts completed evaluation passes by outcome.
	EvaluationPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boosterbucks_evaluation_passes_total",
		Help: "Evaluation passes run, labeled by outcome (ok|error).",
	}, []string{"outcome"})

	// EvaluatorFailures counts non-fatal per-achievement evaluator failures.
	EvaluatorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boosterbucks_evaluator_failures_total",
		Help: "Rule evaluators that failed or panicked during a pass.",
	}, []string{"achievement_id"})

	// AchievementsUnlocked counts NewlyCompleted transitions that won
	// the conditional completion write.
	AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boosterbucks_achievements_unlocked_total",
		Help: "Achievements unlocked, labeled by achievement id.",
	}, []string{"achievement_id"})

	// PointsEarned totals reward points credited.
	PointsEarned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boosterbucks_points_earned_total",
		Help: "Reward points credited to ledgers.",
	})

	// PointsRedeemed totals reward points redeemed.
	PointsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boosterbucks_points_redeemed_total",
		Help: "Reward points redeemed from ledgers.",
	})

	// Redemptions counts redemption attempts by outcome.
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boosterbucks_redemptions_total",
		Help: "Redemption attempts, labeled by outcome (ok|insufficient|error).",
	}, []string{"outcome"})
)
