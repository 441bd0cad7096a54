// Package core contains the pure domain types for achievement
// evaluation and the BoosterBucks reward ledger.
//
// This file holds the built-in achievement catalog. Keep the IDs
// stable because persisted progress records and ledger descriptions
// reference them.
package core

// Well-known achievement IDs with registered rule evaluators.
const (
	AchievementBigSaver      = "big_saver"
	AchievementFirstExpense  = "first_expense"
	AchievementEmergencyFund = "emergency_fund"
)

// DefaultCatalog returns the built-in achievement catalog. Entries
// without a registered evaluator stay at zero progress until one is
// added to the registry.
func DefaultCatalog() []Achievement {
	return []Achievement{
		{
			ID:               AchievementFirstExpense,
			Title:            "First Steps",
			Description:      "Record your first expense",
			Category:         CategoryUserMilestones,
			RewardPoints:     50,
			RequiredProgress: 1,
		},
		{
			ID:               AchievementBigSaver,
			Title:            "Big Saver",
			Description:      "Grow your savings accounts past 1,000",
			Category:         CategorySavings,
			RewardPoints:     250,
			RequiredProgress: 1000,
		},
		{
			ID:               AchievementEmergencyFund,
			Title:            "Rainy Day Ready",
			Description:      "Build up your emergency fund to its goal",
			Category:         CategorySavings,
			RewardPoints:     200,
			RequiredProgress: 1000,
		},
		{
			ID:               "budget_keeper",
			Title:            "Budget Keeper",
			Description:      "Stay under budget in every category for a month",
			Category:         CategoryBudgetManagement,
			RewardPoints:     150,
			RequiredProgress: 1,
		},
		{
			ID:               "week_streak",
			Title:            "Steady Tracker",
			Description:      "Log transactions seven days in a row",
			Category:         CategoryConsistency,
			RewardPoints:     75,
			RequiredProgress: 7,
		},
		{
			ID:               "insight_explorer",
			Title:            "Insight Explorer",
			Description:      "Review your monthly spending breakdown",
			Category:         CategoryFinancialInsight,
			RewardPoints:     25,
			RequiredProgress: 1,
		},
		{
			ID:               "money_student",
			Title:            "Money Student",
			Description:      "Complete five financial literacy lessons",
			Category:         CategoryLearningGrowth,
			RewardPoints:     100,
			RequiredProgress: 5,
		},
	}
}
