package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boosterbucks/internal/core"
	"boosterbucks/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestGetAchievementCatalog_Seeded(t *testing.T) {
	repo := newTestRepo(t)

	catalog, err := repo.GetAchievementCatalog(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := core.DefaultCatalog()
	if len(catalog) != len(want) {
		t.Fatalf("expected %d catalog entries, got %d", len(want), len(catalog))
	}
	for i, a := range catalog {
		if a != want[i] {
			t.Errorf("catalog entry %d: expected %+v, got %+v", i, want[i], a)
		}
	}
}

func TestSaveProgress_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := core.AchievementProgress{
		UserID:        "user-1",
		AchievementID: core.AchievementBigSaver,
		Progress:      400,
	}
	if err := repo.SaveProgress(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := repo.GetUserProgress(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Progress != 400 || records[0].IsCompleted {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestSaveProgress_DoesNotReopenCompleted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	completed := core.AchievementProgress{
		UserID:        "user-1",
		AchievementID: core.AchievementBigSaver,
		Progress:      1200,
		CompletedAt:   time.Now(),
	}
	won, err := repo.CompleteAchievement(ctx, completed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Fatal("expected to win the completion transition")
	}

	// A later plain save must not touch the completed row.
	if err := repo.SaveProgress(ctx, core.AchievementProgress{
		UserID:        "user-1",
		AchievementID: core.AchievementBigSaver,
		Progress:      5,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := repo.GetUserProgress(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].IsCompleted || records[0].Progress != 1200 {
		t.Errorf("completed record was rewritten: %+v", records[0])
	}
}

func TestCompleteAchievement_SingleWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := core.AchievementProgress{
		UserID:        "user-1",
		AchievementID: core.AchievementFirstExpense,
		Progress:      1,
		CompletedAt:   time.Now(),
	}

	won, err := repo.CompleteAchievement(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Fatal("first completion should win")
	}

	won, err = repo.CompleteAchievement(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if won {
		t.Fatal("second completion must lose")
	}
}

func TestLedger_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetLedger(ctx, "user-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent ledger, got %v", err)
	}

	ledger := core.RewardLedger{
		UserID:         "user-1",
		TotalEarned:    300,
		TotalRedeemed:  50,
		CurrentBalance: 250,
		LastUpdated:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveLedger(ctx, ledger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.GetLedger(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ledger {
		t.Errorf("expected %+v, got %+v", ledger, got)
	}
}

func TestSaveLedger_RejectsInvariantViolation(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.SaveLedger(context.Background(), core.RewardLedger{
		UserID:         "user-1",
		TotalEarned:    100,
		TotalRedeemed:  0,
		CurrentBalance: 50,
		LastUpdated:    time.Now(),
	})
	if !errors.Is(err, core.ErrLedgerInvariant) {
		t.Fatalf("expected ErrLedgerInvariant, got %v", err)
	}
}

func TestListTransactions_FiltersByUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	txs := []core.LedgerTransaction{
		{ID: "tx-1", UserID: "user-1", Amount: 250, Kind: core.KindEarned, Description: "credit", Timestamp: base},
		{ID: "tx-2", UserID: "user-2", Amount: 50, Kind: core.KindEarned, Description: "credit", Timestamp: base},
		{ID: "tx-3", UserID: "user-1", Amount: 250, Kind: core.KindRedeemed, Description: "redeem", Timestamp: base.Add(time.Hour)},
	}
	for _, tx := range txs {
		if err := repo.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := repo.ListTransactions(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got))
	}
	if got[0].ID != "tx-1" || got[1].ID != "tx-3" {
		t.Errorf("unexpected transaction order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestGetSnapshot_SeededData(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SeedAccount(ctx, "user-1", core.Account{
		ID:      "acc-1",
		Name:    "Rainy Day",
		Type:    core.AccountSavings,
		Balance: decimal.RequireFromString("1250.50"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.SeedTransaction(ctx, "user-1", core.Transaction{
		ID:        "ftx-1",
		AccountID: "acc-1",
		Type:      core.TxExpense,
		Amount:    decimal.RequireFromString("19.99"),
		Category:  "Groceries",
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.SeedCategory(ctx, "user-1", core.Category{
		ID:     "cat-1",
		Name:   "Groceries",
		Budget: decimal.RequireFromString("400"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := repo.GetSnapshot(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.UserID != "user-1" {
		t.Errorf("expected snapshot for user-1, got %s", snap.UserID)
	}
	if len(snap.Accounts) != 1 || !snap.Accounts[0].Balance.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("unexpected accounts: %+v", snap.Accounts)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].Category != "Groceries" {
		t.Errorf("unexpected transactions: %+v", snap.Transactions)
	}
	if len(snap.Categories) != 1 || !snap.Categories[0].Budget.Equal(decimal.RequireFromString("400")) {
		t.Errorf("unexpected categories: %+v", snap.Categories)
	}
}
