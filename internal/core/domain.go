package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryUserMilestones   AchievementCategory = "user-milestones"
	CategoryConsistency      AchievementCategory = "consistency-habits"
	CategorySavings          AchievementCategory = "savings"
	CategoryBudgetManagement AchievementCategory = "budget-management"
	CategoryFinancialInsight AchievementCategory = "financial-insight"
	CategoryLearningGrowth   AchievementCategory = "learning-growth"
)

const (
	KindEarned   TransactionKind = "EARNED"
	KindRedeemed TransactionKind = "REDEEMED"
)

const (
	AccountSavings  AccountType = "savings"
	AccountChecking AccountType = "checking"
	AccountCredit   AccountType = "credit"
)

const (
	TxExpense TransactionType = "expense"
	TxIncome  TransactionType = "income"
)

type (
	AchievementCategory string

	TransactionKind string

	AccountType string

	TransactionType string

	// Achievement is an immutable catalog entry describing a milestone,
	// its completion target and the points it pays out.
	Achievement struct {
		ID               string
		Title            string
		Description      string
		Category         AchievementCategory
		RewardPoints     int64
		RequiredProgress int64
	}

	// AchievementProgress tracks one user's standing against a single
	// catalog entry. IsCompleted flips false->true exactly once and
	// CompletedAt is never rewritten afterwards.
	AchievementProgress struct {
		UserID        string
		AchievementID string
		Progress      int64
		IsCompleted   bool
		CompletedAt   time.Time
	}

	// RewardLedger is the per-user BoosterBucks account. CurrentBalance
	// must always equal TotalEarned - TotalRedeemed.
	RewardLedger struct {
		UserID         string
		TotalEarned    int64
		TotalRedeemed  int64
		CurrentBalance int64
		LastUpdated    time.Time
	}

	// LedgerTransaction is an append-only log entry recording a single
	// credit or redemption.
	LedgerTransaction struct {
		ID          string
		UserID      string
		Amount      int64
		Kind        TransactionKind
		Description string
		Timestamp   time.Time
	}

	// Account is a financial account as seen by rule evaluators.
	Account struct {
		ID      string
		Name    string
		Type    AccountType
		Balance decimal.Decimal
	}

	// Transaction is a single financial movement as seen by rule
	// evaluators. Category references a Category by name.
	Transaction struct {
		ID          string
		AccountID   string
		Type        TransactionType
		Amount      decimal.Decimal
		Category    string
		Description string
		Date        time.Time
	}

	// Category is a budget category with an optional spending ceiling.
	Category struct {
		ID     string
		Name   string
		Budget decimal.Decimal
	}

	// EvaluationSnapshot is a read-only bundle of one user's financial
	// data taken at a point in time. It is never persisted.
	EvaluationSnapshot struct {
		UserID       string
		Accounts     []Account
		Transactions []Transaction
		Categories   []Category
	}
)

var (
	ErrEmptyID             = errors.New("empty id")
	ErrEmptyUserID         = errors.New("empty user id")
	ErrEmptyTitle          = errors.New("empty title")
	ErrInvalidCategory     = errors.New("invalid achievement category")
	ErrNegativeReward      = errors.New("reward points cannot be negative")
	ErrInvalidRequired     = errors.New("required progress must be positive")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInsufficientBalance = errors.New("insufficient balance for redemption")
	ErrLedgerInvariant     = errors.New("ledger invariant violated")
	ErrUnknownAchievement  = errors.New("unknown achievement")
	ErrAlreadyCompleted    = errors.New("achievement already completed")
)

// Categories lists the closed set of valid achievement categories.
func Categories() []AchievementCategory {
	return []AchievementCategory{
		CategoryUserMilestones,
		CategoryConsistency,
		CategorySavings,
		CategoryBudgetManagement,
		CategoryFinancialInsight,
		CategoryLearningGrowth,
	}
}

func (c AchievementCategory) Valid() bool {
	switch c {
	case CategoryUserMilestones, CategoryConsistency, CategorySavings,
		CategoryBudgetManagement, CategoryFinancialInsight, CategoryLearningGrowth:
		return true
	}
	return false
}

func (a Achievement) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyTitle
	}
	if !a.Category.Valid() {
		return ErrInvalidCategory
	}
	if a.RewardPoints < 0 {
		return ErrNegativeReward
	}
	if a.RequiredProgress < 1 {
		return ErrInvalidRequired
	}
	return nil
}

// Completed reports whether the given progress value meets the
// achievement's completion target.
func (a Achievement) Completed(progress int64) bool {
	return progress >= a.RequiredProgress
}

func (p AchievementProgress) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(p.AchievementID) == "" {
		return ErrEmptyID
	}
	return nil
}

// NewLedger returns an empty ledger for the given user.
func NewLedger(userID string) RewardLedger {
	return RewardLedger{UserID: userID}
}

// CheckInvariant verifies the ledger arithmetic. A violation means a
// mutual-exclusion guarantee was missed somewhere and the ledger needs
// manual reconciliation.
func (l RewardLedger) CheckInvariant() error {
	if l.CurrentBalance != l.TotalEarned-l.TotalRedeemed {
		return ErrLedgerInvariant
	}
	if l.CurrentBalance < 0 || l.TotalEarned < 0 || l.TotalRedeemed < 0 {
		return ErrLedgerInvariant
	}
	return nil
}

func (k TransactionKind) Valid() bool {
	return k == KindEarned || k == KindRedeemed
}

func (t LedgerTransaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUserID
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}
