package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"boosterbucks/internal/core"
	"boosterbucks/internal/store"
)

// DefaultMinRedemption is the smallest balance that can be redeemed.
const DefaultMinRedemption int64 = 250

// DefaultConversionRate is the monetary value of one reward point.
var DefaultConversionRate = decimal.RequireFromString("0.01")

// Redemption converts an available balance into monetary value at a
// fixed rate. The monetary value is a settlement concern for the
// caller; the ledger itself only books integer points.
type Redemption struct {
	store         store.LedgerStore
	now           func() time.Time
	minRedemption int64
	rate          decimal.Decimal
}

// RedemptionResult reports a successful redemption.
type RedemptionResult struct {
	Ledger        core.RewardLedger
	Transaction   core.LedgerTransaction
	Points        int64
	MonetaryValue decimal.Decimal
}

// NewRedemption creates a redemption service. Zero minRedemption and
// rate fall back to the defaults; pass nil for now to use time.Now.
func NewRedemption(ledgerStore store.LedgerStore, minRedemption int64, rate decimal.Decimal, now func() time.Time) *Redemption {
	if minRedemption <= 0 {
		minRedemption = DefaultMinRedemption
	}
	if !rate.IsPositive() {
		rate = DefaultConversionRate
	}
	if now == nil {
		now = time.Now
	}
	return &Redemption{store: ledgerStore, now: now, minRedemption: minRedemption, rate: rate}
}

// MinRedemption returns the redemption threshold in points.
func (r *Redemption) MinRedemption() int64 {
	return r.minRedemption
}

// Redeem converts the user's full balance to monetary value. Balances
// below the threshold fail with ErrInsufficientBalance and leave the
// ledger untouched. Callers must serialize Redeem against Credit for
// the same user.
func (r *Redemption) Redeem(ctx context.Context, userID string) (RedemptionResult, error) {
	ledger, err := r.store.GetLedger(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		ledger = core.NewLedger(userID)
	} else if err != nil {
		return RedemptionResult{}, fmt.Errorf("get ledger: %w", err)
	}

	if ledger.CurrentBalance < r.minRedemption {
		return RedemptionResult{}, fmt.Errorf("balance %d below minimum %d: %w",
			ledger.CurrentBalance, r.minRedemption, core.ErrInsufficientBalance)
	}

	amount := ledger.CurrentBalance
	ledger.TotalRedeemed += amount
	ledger.CurrentBalance = 0
	ledger.LastUpdated = r.now()

	if err := ledger.CheckInvariant(); err != nil {
		return RedemptionResult{}, fmt.Errorf("redeem %d for %s: %w", amount, userID, err)
	}

	if err := r.store.SaveLedger(ctx, ledger); err != nil {
		return RedemptionResult{}, fmt.Errorf("save ledger: %w", err)
	}

	tx := core.LedgerTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Kind:        core.KindRedeemed,
		Description: fmt.Sprintf("Redeemed %d BoosterBucks", amount),
		Timestamp:   ledger.LastUpdated,
	}
	if err := r.store.AppendTransaction(ctx, tx); err != nil {
		return RedemptionResult{}, fmt.Errorf("append redeemed transaction: %w", err)
	}

	value := decimal.NewFromInt(amount).Mul(r.rate)

	slog.InfoContext(ctx, "Redeemed reward points",
		"user_id", userID,
		"points", amount,
		"monetary_value", value.String())

	return RedemptionResult{
		Ledger:        ledger,
		Transaction:   tx,
		Points:        amount,
		MonetaryValue: value,
	}, nil
}
