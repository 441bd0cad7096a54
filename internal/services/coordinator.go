// Package services orchestrates the achievement pipeline: one
// evaluation pass runs snapshot -> engine -> reconciler -> ledger,
// and redemption runs against the same per-user serialization.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"boosterbucks/internal/amqp"
	"boosterbucks/internal/cache"
	"boosterbucks/internal/core"
	"boosterbucks/internal/engine"
	"boosterbucks/internal/ledger"
	"boosterbucks/internal/metrics"
	"boosterbucks/internal/reconcile"
	"boosterbucks/internal/store"
)

const (
	catalogCacheKey = "catalog"
	catalogCacheTTL = 5 * time.Minute
)

// EventPublisher publishes unlock and redemption events for the
// notification layer. Implementations must tolerate being called from
// concurrent passes for different users.
type EventPublisher interface {
	PublishAchievementUnlocked(ctx context.Context, msg *amqp.AchievementUnlockedMessage) error
	PublishRedemptionSettled(ctx context.Context, msg *amqp.RedemptionSettledMessage) error
}

// Stores bundles the record-store ports one coordinator needs.
type Stores struct {
	Catalog   store.CatalogReader
	Progress  store.ProgressStore
	Ledger    store.LedgerStore
	Snapshots store.SnapshotSource
}

// PassResult reports one evaluation pass.
type PassResult struct {
	UserID         string
	NewlyCompleted []core.Achievement
	Failures       []engine.Failure
	Ledger         core.RewardLedger
}

// Coordinator sequences evaluation, reconciliation, crediting and
// persistence for single users. It is the only component that mutates
// achievement progress or the reward ledger; per-user locks serialize
// passes and redemptions so ledger arithmetic never interleaves.
type Coordinator struct {
	engine     *engine.Engine
	stores     Stores
	ledgerSvc  *ledger.Service
	redemption *ledger.Redemption
	publisher  EventPublisher // optional

	catalogCache *cache.TTLCache[[]core.Achievement]
	now          func() time.Time

	mapMu sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator wires a coordinator. publisher may be nil; events are
// then skipped with a warning. Pass nil for now to use time.Now.
func NewCoordinator(eng *engine.Engine, stores Stores, ledgerSvc *ledger.Service, redemption *ledger.Redemption, publisher EventPublisher, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		engine:       eng,
		stores:       stores,
		ledgerSvc:    ledgerSvc,
		redemption:   redemption,
		publisher:    publisher,
		catalogCache: cache.New[[]core.Achievement](1, catalogCacheTTL),
		now:          now,
		locks:        make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing all passes and redemptions
// for one user.
func (c *Coordinator) userLock(userID string) *sync.Mutex {
	c.mapMu.Lock()
	defer c.mapMu.Unlock()

	if _, exists := c.locks[userID]; !exists {
		c.locks[userID] = &sync.Mutex{}
	}
	return c.locks[userID]
}

func (c *Coordinator) catalog(ctx context.Context) ([]core.Achievement, error) {
	if cached, ok := c.catalogCache.Get(catalogCacheKey); ok {
		return cached, nil
	}
	catalog, err := c.stores.Catalog.GetAchievementCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("get achievement catalog: %w", err)
	}
	c.catalogCache.Set(catalogCacheKey, catalog)
	return catalog, nil
}

// RunPass executes one full evaluation pass for a user: fetch
// snapshot, compute progress, reconcile against persisted state,
// credit newly completed achievements and publish their unlock events.
//
// The pass is idempotent and re-runnable: completed achievements are
// terminal, the store's conditional completion write elects a single
// winner under concurrency, and credits carry an idempotency marker.
func (c *Coordinator) RunPass(ctx context.Context, userID string) (PassResult, error) {
	if userID == "" {
		return PassResult{}, core.ErrEmptyUserID
	}

	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	result, err := c.runPassLocked(ctx, userID)
	if err != nil {
		metrics.EvaluationPasses.WithLabelValues("error").Inc()
		return PassResult{}, err
	}
	metrics.EvaluationPasses.WithLabelValues("ok").Inc()
	return result, nil
}

func (c *Coordinator) runPassLocked(ctx context.Context, userID string) (PassResult, error) {
	snap, err := c.stores.Snapshots.GetSnapshot(ctx, userID)
	if err != nil {
		return PassResult{}, fmt.Errorf("get snapshot: %w", err)
	}

	catalog, err := c.catalog(ctx)
	if err != nil {
		return PassResult{}, err
	}

	existing, err := c.stores.Progress.GetUserProgress(ctx, userID)
	if err != nil {
		return PassResult{}, fmt.Errorf("get user progress: %w", err)
	}

	computed, failures := c.engine.EvaluateAll(snap)
	for _, f := range failures {
		metrics.EvaluatorFailures.WithLabelValues(f.AchievementID).Inc()
	}

	rec := reconcile.New(catalog, c.now)
	updates := rec.Reconcile(userID, computed, existing)

	result := PassResult{UserID: userID, Failures: failures}
	for _, update := range updates {
		if update.Transition == reconcile.TransitionNewlyCompleted {
			unlocked, err := c.completeAndCredit(ctx, update)
			if err != nil {
				return PassResult{}, err
			}
			if unlocked {
				result.NewlyCompleted = append(result.NewlyCompleted, update.Achievement)
			}
			continue
		}

		if err := c.stores.Progress.SaveProgress(ctx, update.Progress); err != nil {
			return PassResult{}, fmt.Errorf("save progress for %s: %w", update.Progress.AchievementID, err)
		}
		slog.DebugContext(ctx, "Progress updated",
			"user_id", userID,
			"achievement_id", update.Progress.AchievementID,
			"progress", update.Progress.Progress,
			"transition", string(update.Transition))
	}

	// Self-heal credits that a crashed pass left behind: completed
	// records always end up with their marker transaction.
	if err := c.repairMissedCredits(ctx, userID, rec, existing); err != nil {
		return PassResult{}, err
	}

	result.Ledger, err = c.ledgerSvc.Ledger(ctx, userID)
	if err != nil {
		return PassResult{}, err
	}

	slog.InfoContext(ctx, "Evaluation pass finished",
		"user_id", userID,
		"updates", len(updates),
		"newly_completed", len(result.NewlyCompleted),
		"evaluator_failures", len(failures),
		"balance", result.Ledger.CurrentBalance)

	return result, nil
}

// completeAndCredit performs the race-guarded unlock sequence: the
// store's conditional write elects a single winner; only the winner
// credits and publishes. Losing the race is not an error.
func (c *Coordinator) completeAndCredit(ctx context.Context, update reconcile.Update) (bool, error) {
	won, err := c.stores.Progress.CompleteAchievement(ctx, update.Progress)
	if err != nil {
		return false, fmt.Errorf("complete achievement %s: %w", update.Progress.AchievementID, err)
	}
	if !won {
		slog.InfoContext(ctx, "Lost completion race, skipping credit",
			"user_id", update.Progress.UserID,
			"achievement_id", update.Progress.AchievementID)
		return false, nil
	}

	_, credited, err := c.ledgerSvc.CreditAchievement(ctx, update.Progress.UserID, update.Achievement)
	if err != nil {
		// Completion is durable; the credit marker is absent, so the
		// next pass repairs the missing credit.
		return false, fmt.Errorf("credit achievement %s: %w", update.Achievement.ID, err)
	}
	if credited {
		metrics.PointsEarned.Add(float64(update.Achievement.RewardPoints))
	}
	metrics.AchievementsUnlocked.WithLabelValues(update.Achievement.ID).Inc()

	c.publishUnlock(ctx, update)
	return true, nil
}

// repairMissedCredits re-runs the idempotent credit for achievements
// that were completed on an earlier pass. Normally a no-op.
func (c *Coordinator) repairMissedCredits(ctx context.Context, userID string, rec *reconcile.Reconciler, existing []core.AchievementProgress) error {
	for _, record := range existing {
		if !record.IsCompleted {
			continue
		}
		ach, ok := rec.Achievement(record.AchievementID)
		if !ok {
			continue
		}
		_, credited, err := c.ledgerSvc.CreditAchievement(ctx, userID, ach)
		if err != nil {
			return fmt.Errorf("repair credit for %s: %w", ach.ID, err)
		}
		if credited {
			metrics.PointsEarned.Add(float64(ach.RewardPoints))
			slog.WarnContext(ctx, "Repaired missed achievement credit",
				"user_id", userID,
				"achievement_id", ach.ID,
				"points", ach.RewardPoints)
		}
	}
	return nil
}

func (c *Coordinator) publishUnlock(ctx context.Context, update reconcile.Update) {
	if c.publisher == nil {
		slog.WarnContext(ctx, "No event publisher configured, skipping unlock event",
			"achievement_id", update.Achievement.ID)
		return
	}
	msg := &amqp.AchievementUnlockedMessage{
		UserID:        update.Progress.UserID,
		AchievementID: update.Achievement.ID,
		Title:         update.Achievement.Title,
		RewardPoints:  update.Achievement.RewardPoints,
		Timestamp:     c.now(),
	}
	// Event delivery is best effort; the unlock itself is already
	// durable.
	if err := c.publisher.PublishAchievementUnlocked(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish unlock event",
			"achievement_id", update.Achievement.ID,
			"error", err)
	}
}

// Redeem converts the user's balance to monetary value under the same
// per-user serialization as evaluation passes.
func (c *Coordinator) Redeem(ctx context.Context, userID string) (ledger.RedemptionResult, error) {
	if userID == "" {
		return ledger.RedemptionResult{}, core.ErrEmptyUserID
	}

	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	result, err := c.redemption.Redeem(ctx, userID)
	if err != nil {
		if isInsufficient(err) {
			metrics.Redemptions.WithLabelValues("insufficient").Inc()
		} else {
			metrics.Redemptions.WithLabelValues("error").Inc()
		}
		return ledger.RedemptionResult{}, err
	}

	metrics.Redemptions.WithLabelValues("ok").Inc()
	metrics.PointsRedeemed.Add(float64(result.Points))

	if c.publisher != nil {
		msg := &amqp.RedemptionSettledMessage{
			UserID:        userID,
			Points:        result.Points,
			MonetaryValue: result.MonetaryValue.String(),
			Timestamp:     c.now(),
		}
		if err := c.publisher.PublishRedemptionSettled(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish redemption event",
				"user_id", userID,
				"error", err)
		}
	}

	return result, nil
}

// Progress returns the user's achievement records joined with the
// catalog, for display.
func (c *Coordinator) Progress(ctx context.Context, userID string) ([]core.Achievement, []core.AchievementProgress, error) {
	catalog, err := c.catalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	records, err := c.stores.Progress.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user progress: %w", err)
	}
	return catalog, records, nil
}

// Ledger returns the user's reward ledger for display.
func (c *Coordinator) Ledger(ctx context.Context, userID string) (core.RewardLedger, error) {
	return c.ledgerSvc.Ledger(ctx, userID)
}

// Transactions returns the user's ledger transaction log.
func (c *Coordinator) Transactions(ctx context.Context, userID string) ([]core.LedgerTransaction, error) {
	return c.ledgerSvc.Transactions(ctx, userID)
}

func isInsufficient(err error) bool {
	return errors.Is(err, core.ErrInsufficientBalance)
}
