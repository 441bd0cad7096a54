// Package memory is the in-memory record store backend. It is the
// default backend for local development and the workhorse for tests;
// its conditional-completion semantics match the SQLite backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"boosterbucks/internal/core"
	"boosterbucks/internal/store"
)

type progressKey struct {
	userID        string
	achievementID string
}

// Store implements every store port over process memory. All methods
// are safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	catalog      []core.Achievement
	progress     map[progressKey]core.AchievementProgress
	ledgers      map[string]core.RewardLedger
	transactions []core.LedgerTransaction
	snapshots    map[string]core.EvaluationSnapshot
}

// New creates a memory store serving the given achievement catalog.
func New(catalog []core.Achievement) *Store {
	return &Store{
		catalog:   append([]core.Achievement(nil), catalog...),
		progress:  make(map[progressKey]core.AchievementProgress),
		ledgers:   make(map[string]core.RewardLedger),
		snapshots: make(map[string]core.EvaluationSnapshot),
	}
}

func (s *Store) GetAchievementCatalog(_ context.Context) ([]core.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Achievement, len(s.catalog))
	copy(out, s.catalog)
	return out, nil
}

func (s *Store) GetUserProgress(_ context.Context, userID string) ([]core.AchievementProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.AchievementProgress
	for key, p := range s.progress {
		if key.userID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

func (s *Store) SaveProgress(_ context.Context, p core.AchievementProgress) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{userID: p.UserID, achievementID: p.AchievementID}
	// A completed record is terminal; a plain save may not reopen it.
	if prior, ok := s.progress[key]; ok && prior.IsCompleted {
		return nil
	}
	s.progress[key] = p
	return nil
}

// CompleteAchievement marks the record completed only if it is not
// completed yet. The boolean reports whether this caller performed the
// transition; losing the race is not an error.
func (s *Store) CompleteAchievement(_ context.Context, p core.AchievementProgress) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{userID: p.UserID, achievementID: p.AchievementID}
	if prior, ok := s.progress[key]; ok && prior.IsCompleted {
		return false, nil
	}
	p.IsCompleted = true
	s.progress[key] = p
	return true, nil
}

func (s *Store) GetLedger(_ context.Context, userID string) (core.RewardLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[userID]
	if !ok {
		return core.RewardLedger{}, store.ErrNotFound
	}
	return ledger, nil
}

func (s *Store) SaveLedger(_ context.Context, ledger core.RewardLedger) error {
	if ledger.UserID == "" {
		return core.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[ledger.UserID] = ledger
	return nil
}

func (s *Store) AppendTransaction(_ context.Context, tx core.LedgerTransaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.LedgerTransaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) GetSnapshot(_ context.Context, userID string) (core.EvaluationSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[userID]
	if !ok {
		return core.EvaluationSnapshot{UserID: userID}, nil
	}
	return snap, nil
}

// SetSnapshot seeds the financial data a user's evaluation passes run
// against. Used by the memory backend and tests.
func (s *Store) SetSnapshot(userID string, snap core.EvaluationSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.UserID = userID
	s.snapshots[userID] = snap
}

// Interface checks.
var (
	_ store.CatalogReader  = (*Store)(nil)
	_ store.ProgressStore  = (*Store)(nil)
	_ store.LedgerStore    = (*Store)(nil)
	_ store.SnapshotSource = (*Store)(nil)
)
