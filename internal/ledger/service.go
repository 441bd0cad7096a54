// Package ledger owns the BoosterBucks reward ledger: crediting
// points on achievement unlocks and redeeming balances for monetary
// value. Every mutation re-verifies the ledger arithmetic before it is
// persisted.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"boosterbucks/internal/core"
	"boosterbucks/internal/store"
)

// Service credits reward points into per-user ledgers. Callers must
// serialize credits and redemptions per user; the coordinator's
// per-user lock provides that.
type Service struct {
	store store.LedgerStore
	now   func() time.Time
}

// NewService creates a ledger service. Pass nil for now to use
// time.Now.
func NewService(ledgerStore store.LedgerStore, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: ledgerStore, now: now}
}

// Ledger returns the user's ledger, or an empty one if the user has
// never earned points.
func (s *Service) Ledger(ctx context.Context, userID string) (core.RewardLedger, error) {
	ledger, err := s.store.GetLedger(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return core.NewLedger(userID), nil
	}
	if err != nil {
		return core.RewardLedger{}, fmt.Errorf("get ledger: %w", err)
	}
	return ledger, nil
}

// Credit adds amount points to the user's balance and appends an
// EARNED transaction. The ledger write commits before the transaction
// append so a failed append never leaves phantom balance.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, description string) (core.RewardLedger, error) {
	if amount <= 0 {
		return core.RewardLedger{}, core.ErrInvalidAmount
	}

	ledger, err := s.Ledger(ctx, userID)
	if err != nil {
		return core.RewardLedger{}, err
	}

	ledger.TotalEarned += amount
	ledger.CurrentBalance += amount
	ledger.LastUpdated = s.now()

	if err := ledger.CheckInvariant(); err != nil {
		return core.RewardLedger{}, fmt.Errorf("credit %d to %s: %w", amount, userID, err)
	}

	if err := s.store.SaveLedger(ctx, ledger); err != nil {
		return core.RewardLedger{}, fmt.Errorf("save ledger: %w", err)
	}

	tx := core.LedgerTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Kind:        core.KindEarned,
		Description: description,
		Timestamp:   ledger.LastUpdated,
	}
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		return core.RewardLedger{}, fmt.Errorf("append earned transaction: %w", err)
	}

	slog.InfoContext(ctx, "Credited reward points",
		"user_id", userID,
		"amount", amount,
		"balance", ledger.CurrentBalance,
		"description", description)

	return ledger, nil
}

// CreditDescription builds the marker description recorded on the
// EARNED transaction for an achievement. It is what makes achievement
// credits idempotent: a retry finds the marker and books nothing.
func CreditDescription(achievementID string) string {
	return "Achievement unlocked: " + achievementID
}

// CreditAchievement credits an achievement's reward points at most
// once per (user, achievement) pair. The returned bool reports whether
// a credit was booked; an already-applied marker or a zero-point
// achievement books nothing without error.
func (s *Service) CreditAchievement(ctx context.Context, userID string, ach core.Achievement) (core.RewardLedger, bool, error) {
	if ach.RewardPoints == 0 {
		ledger, err := s.Ledger(ctx, userID)
		return ledger, false, err
	}

	marker := CreditDescription(ach.ID)
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return core.RewardLedger{}, false, fmt.Errorf("check credit marker: %w", err)
	}
	for _, tx := range txs {
		if tx.Kind == core.KindEarned && tx.Description == marker {
			ledger, err := s.Ledger(ctx, userID)
			return ledger, false, err
		}
	}

	ledger, err := s.Credit(ctx, userID, ach.RewardPoints, marker)
	if err != nil {
		return core.RewardLedger{}, false, err
	}
	return ledger, true, nil
}

// Transactions returns the user's ledger transaction log.
func (s *Service) Transactions(ctx context.Context, userID string) ([]core.LedgerTransaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
