package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"boosterbucks/internal/core"
	"boosterbucks/internal/store/memory"
)

func TestRedemption_Redeem_FullBalance(t *testing.T) {
	mem := memory.New(nil)
	svc := NewService(mem, fixedNow)
	red := NewRedemption(mem, 250, decimal.RequireFromString("0.01"), fixedNow)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "u1", 300, "credit"); err != nil {
		t.Fatal(err)
	}

	result, err := red.Redeem(ctx, "u1")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if result.Points != 300 {
		t.Errorf("points = %d, want 300", result.Points)
	}
	if want := decimal.RequireFromString("3.00"); !result.MonetaryValue.Equal(want) {
		t.Errorf("monetary value = %s, want %s", result.MonetaryValue, want)
	}

	ledger := result.Ledger
	if ledger.TotalEarned != 300 || ledger.TotalRedeemed != 300 || ledger.CurrentBalance != 0 {
		t.Fatalf("ledger = %+v", ledger)
	}
	if err := ledger.CheckInvariant(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}

	if result.Transaction.Kind != core.KindRedeemed || result.Transaction.Amount != 300 {
		t.Errorf("transaction = %+v", result.Transaction)
	}

	txs, err := svc.Transactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want credit + redemption", len(txs))
	}
}

func TestRedemption_Redeem_BelowMinimum(t *testing.T) {
	mem := memory.New(nil)
	svc := NewService(mem, fixedNow)
	red := NewRedemption(mem, 250, DefaultConversionRate, fixedNow)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "u1", 100, "credit"); err != nil {
		t.Fatal(err)
	}

	_, err := red.Redeem(ctx, "u1")
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}

	// Failed redemption must not mutate the ledger.
	ledger, err := svc.Ledger(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if ledger.CurrentBalance != 100 || ledger.TotalRedeemed != 0 {
		t.Fatalf("ledger mutated on failed redemption: %+v", ledger)
	}

	txs, err := svc.Transactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want only the credit", len(txs))
	}
}

func TestRedemption_Redeem_EmptyLedger(t *testing.T) {
	red := NewRedemption(memory.New(nil), 250, DefaultConversionRate, fixedNow)

	if _, err := red.Redeem(context.Background(), "u1"); !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
}

func TestRedemption_ExactThreshold(t *testing.T) {
	mem := memory.New(nil)
	svc := NewService(mem, fixedNow)
	red := NewRedemption(mem, 250, DefaultConversionRate, fixedNow)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "u1", 250, "credit"); err != nil {
		t.Fatal(err)
	}

	result, err := red.Redeem(ctx, "u1")
	if err != nil {
		t.Fatalf("balance equal to the minimum should redeem: %v", err)
	}
	if result.Points != 250 {
		t.Errorf("points = %d, want 250", result.Points)
	}
}

func TestNewRedemption_Defaults(t *testing.T) {
	red := NewRedemption(memory.New(nil), 0, decimal.Zero, nil)
	if red.MinRedemption() != DefaultMinRedemption {
		t.Errorf("min redemption = %d, want %d", red.MinRedemption(), DefaultMinRedemption)
	}
	if !red.rate.Equal(DefaultConversionRate) {
		t.Errorf("rate = %s, want %s", red.rate, DefaultConversionRate)
	}
}
