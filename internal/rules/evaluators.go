package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"boosterbucks/internal/core"
)

// emergencyTag marks transactions and the budget category that feed
// the emergency fund rule.
const emergencyTag = "Emergency"

// BigSaver measures the combined balance of all savings accounts,
// truncated to a whole unit.
type BigSaver struct{}

func (BigSaver) Evaluate(snap core.EvaluationSnapshot) (int64, error) {
	total := decimal.Zero
	for _, acc := range snap.Accounts {
		if acc.Type == core.AccountSavings {
			total = total.Add(acc.Balance)
		}
	}
	if total.IsNegative() {
		return 0, nil
	}
	return total.IntPart(), nil
}

// FirstExpense reports 1 once any expense transaction exists.
type FirstExpense struct{}

func (FirstExpense) Evaluate(snap core.EvaluationSnapshot) (int64, error) {
	for _, tx := range snap.Transactions {
		if tx.Type == core.TxExpense {
			return 1, nil
		}
	}
	return 0, nil
}

// EmergencyFund sums transactions tagged "Emergency", capped at the
// fund goal. The goal comes from a budget category of the same name
// when one defines a positive ceiling, otherwise from DefaultGoal.
type EmergencyFund struct {
	DefaultGoal int64
}

func (e EmergencyFund) Evaluate(snap core.EvaluationSnapshot) (int64, error) {
	goal := e.DefaultGoal
	for _, cat := range snap.Categories {
		if strings.EqualFold(cat.Name, emergencyTag) && cat.Budget.IsPositive() {
			goal = cat.Budget.IntPart()
			break
		}
	}

	total := decimal.Zero
	for _, tx := range snap.Transactions {
		if strings.EqualFold(tx.Category, emergencyTag) {
			total = total.Add(tx.Amount)
		}
	}

	progress := total.IntPart()
	if progress < 0 {
		return 0, nil
	}
	if progress > goal {
		progress = goal
	}
	return progress, nil
}
