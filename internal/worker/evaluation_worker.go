package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"boosterbucks/internal/amqp"
	"boosterbucks/internal/services"
)

// EvaluationWorker consumes evaluation requests and runs achievement
// passes. A periodic sweep re-evaluates recently seen users as a backup
// in case AMQP messages are lost.
type EvaluationWorker struct {
	coordinator *services.Coordinator
	interval    time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewEvaluationWorker(coordinator *services.Coordinator, interval time.Duration) *EvaluationWorker {
	return &EvaluationWorker{
		coordinator: coordinator,
		interval:    interval,
		seen:        make(map[string]time.Time),
	}
}

// HandleEvaluationRequest processes a single evaluation request from AMQP
func (w *EvaluationWorker) HandleEvaluationRequest(ctx context.Context, msg *amqp.EvaluationRequestedMessage) error {
	slog.InfoContext(ctx, "Processing evaluation request",
		"user_id", msg.UserID,
		"reason", msg.Reason)

	w.remember(msg.UserID)

	result, err := w.coordinator.RunPass(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("run evaluation pass: %w", err)
	}

	if len(result.NewlyCompleted) > 0 {
		slog.InfoContext(ctx, "Evaluation request unlocked achievements",
			"user_id", msg.UserID,
			"unlocked", len(result.NewlyCompleted))
	}

	return nil
}

// Run blocks until ctx is cancelled, driving the periodic sweep loop.
func (w *EvaluationWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.sweep(ctx)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return g.Wait()
}

// sweep re-evaluates every user seen since the last sweep. Failures are
// logged and do not stop the remaining users.
func (w *EvaluationWorker) sweep(ctx context.Context) {
	users := w.drainSeen()
	if len(users) == 0 {
		return
	}

	slog.InfoContext(ctx, "Running periodic evaluation sweep", "users", len(users))

	successCount := 0
	errorCount := 0
	for _, userID := range users {
		if _, err := w.coordinator.RunPass(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Sweep evaluation failed", "user_id", userID, "error", err)
			w.remember(userID)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Evaluation sweep completed",
		"total", len(users),
		"evaluated", successCount,
		"errors", errorCount)
}

func (w *EvaluationWorker) remember(userID string) {
	if userID == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen[userID] = time.Now()
}

func (w *EvaluationWorker) drainSeen() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	users := make([]string, 0, len(w.seen))
	for userID := range w.seen {
		users = append(users, userID)
	}
	w.seen = make(map[string]time.Time)

	return users
}
