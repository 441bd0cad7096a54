// Package engine runs the full rule registry against one snapshot and
// collects per-achievement progress.
package engine

import (
	"fmt"
	"log/slog"

	"boosterbucks/internal/core"
	"boosterbucks/internal/rules"
)

// Failure records one evaluator that could not produce a progress
// value. The batch continues; the achievement's progress is treated as
// unchanged for this pass.
type Failure struct {
	AchievementID string
	Err           error
}

func (f Failure) Error() string {
	return fmt.Sprintf("evaluator for %q failed: %v", f.AchievementID, f.Err)
}

// Engine evaluates every registered rule over a snapshot. It performs
// no I/O and never mutates persisted state; the same snapshot always
// produces the same progress map.
type Engine struct {
	registry *rules.Registry
}

func New(registry *rules.Registry) *Engine {
	return &Engine{registry: registry}
}

// EvaluateAll computes the progress map for one snapshot. Evaluators
// that return an error or panic are skipped and reported as non-fatal
// failures; their achievements are absent from the returned map.
func (e *Engine) EvaluateAll(snap core.EvaluationSnapshot) (map[string]int64, []Failure) {
	progress := make(map[string]int64, e.registry.Len())
	var failures []Failure

	for _, rule := range e.registry.Rules() {
		value, err := evaluateOne(rule, snap)
		if err != nil {
			failures = append(failures, Failure{AchievementID: rule.AchievementID, Err: err})
			slog.Warn("Evaluator failed, skipping achievement",
				"achievement_id", rule.AchievementID,
				"error", err)
			continue
		}
		if value < 0 {
			value = 0
		}
		progress[rule.AchievementID] = value
	}

	return progress, failures
}

// evaluateOne isolates a single evaluator call so a panicking rule
// cannot take down the batch.
func evaluateOne(rule rules.Rule, snap core.EvaluationSnapshot) (value int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator panicked: %v", r)
		}
	}()
	return rule.Evaluator.Evaluate(snap)
}
