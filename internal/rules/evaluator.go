// Package rules implements the achievement rule evaluators.
//
// Each achievement rule is a strategy behind the Evaluator interface:
// a pure function from an evaluation snapshot to an integer progress
// value. Adding an achievement means writing one evaluator and
// registering it; nothing else changes.
package rules

import (
	"fmt"

	"boosterbucks/internal/core"
)

// Evaluator computes the progress value for a single achievement from
// a read-only snapshot. Implementations must be pure and total:
// missing or unknown data yields progress 0, not an error.
type Evaluator interface {
	Evaluate(snap core.EvaluationSnapshot) (int64, error)
}

// Rule binds an achievement ID to its evaluator.
type Rule struct {
	AchievementID string
	Evaluator     Evaluator
}

// Registry is an ordered collection of achievement rules. Order is
// preserved so evaluation output is reproducible run to run.
type Registry struct {
	rules []Rule
	index map[string]int
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a rule for the given achievement ID. Registering the
// same ID twice is a programming error and is rejected.
func (r *Registry) Register(achievementID string, ev Evaluator) error {
	if achievementID == "" {
		return core.ErrEmptyID
	}
	if ev == nil {
		return fmt.Errorf("nil evaluator for achievement %q", achievementID)
	}
	if _, exists := r.index[achievementID]; exists {
		return fmt.Errorf("evaluator already registered for achievement %q", achievementID)
	}
	r.index[achievementID] = len(r.rules)
	r.rules = append(r.rules, Rule{AchievementID: achievementID, Evaluator: ev})
	return nil
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Config carries tunable rule parameters.
type Config struct {
	// EmergencyFundDefaultGoal is the fallback goal used when no
	// matching budget category defines one. The historical default
	// is 1000.
	EmergencyFundDefaultGoal int64
}

// DefaultConfig returns the historical rule defaults.
func DefaultConfig() Config {
	return Config{EmergencyFundDefaultGoal: 1000}
}

// DefaultRegistry builds the registry with every built-in evaluator.
func DefaultRegistry(cfg Config) *Registry {
	if cfg.EmergencyFundDefaultGoal <= 0 {
		cfg = DefaultConfig()
	}
	r := NewRegistry()
	// Registration of built-in rules cannot collide.
	_ = r.Register(core.AchievementBigSaver, BigSaver{})
	_ = r.Register(core.AchievementFirstExpense, FirstExpense{})
	_ = r.Register(core.AchievementEmergencyFund, EmergencyFund{DefaultGoal: cfg.EmergencyFundDefaultGoal})
	return r
}
