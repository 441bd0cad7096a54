package store

import (
	"context"
	"errors"

	"boosterbucks/internal/core"
)

// ErrNotFound is returned when a requested record does not exist.
// Callers that treat absence as "start from zero" must check for it
// explicitly.
var ErrNotFound = errors.New("record not found")

// Ports for the external record store and snapshot source. All
// operations are context-aware and may fail with transient I/O errors.
type (
	// CatalogReader serves the immutable achievement catalog.
	CatalogReader interface {
		GetAchievementCatalog(ctx context.Context) ([]core.Achievement, error)
	}

	// ProgressStore persists per-user achievement progress.
	//
	// CompleteAchievement is the conditional write that makes unlock
	// detection race-safe: it marks the record completed only if it is
	// not completed yet and reports whether this caller won the
	// transition. A lost race is not an error.
	ProgressStore interface {
		GetUserProgress(ctx context.Context, userID string) ([]core.AchievementProgress, error)
		SaveProgress(ctx context.Context, p core.AchievementProgress) error
		CompleteAchievement(ctx context.Context, p core.AchievementProgress) (won bool, err error)
	}

	// LedgerStore persists the per-user reward ledger and its
	// append-only transaction log.
	LedgerStore interface {
		GetLedger(ctx context.Context, userID string) (core.RewardLedger, error)
		SaveLedger(ctx context.Context, ledger core.RewardLedger) error
		AppendTransaction(ctx context.Context, tx core.LedgerTransaction) error
		ListTransactions(ctx context.Context, userID string) ([]core.LedgerTransaction, error)
	}

	// SnapshotSource produces the read-only financial snapshot a
	// single evaluation pass runs against.
	SnapshotSource interface {
		GetSnapshot(ctx context.Context, userID string) (core.EvaluationSnapshot, error)
	}
)
