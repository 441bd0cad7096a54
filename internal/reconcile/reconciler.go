// Package reconcile merges freshly computed achievement progress into
// previously persisted per-user state.
//
// The reconciler is pure: it classifies each achievement's transition
// and returns the records that need persisting, but performs no I/O
// itself. Completed achievements are terminal and never touched again.
package reconcile

import (
	"time"

	"boosterbucks/internal/core"
)

const (
	// TransitionUnchanged marks a record that only needs its first
	// write (a catalog entry seen for the first time).
	TransitionUnchanged Transition = "unchanged"
	// TransitionProgressed marks a progress value change below the
	// completion target.
	TransitionProgressed Transition = "progressed"
	// TransitionNewlyCompleted marks the one-time crossing of the
	// completion target.
	TransitionNewlyCompleted Transition = "newly_completed"
)

type (
	Transition string

	// Update is one achievement record that must be persisted after a
	// reconciliation pass, together with how it got there.
	Update struct {
		Achievement core.Achievement
		Progress    core.AchievementProgress
		Transition  Transition
	}

	// Reconciler merges computed progress against persisted records
	// for the catalog it was built with.
	Reconciler struct {
		catalog []core.Achievement
		byID    map[string]core.Achievement
		now     func() time.Time
	}
)

// New builds a reconciler over the given catalog. The now function is
// injected so completion timestamps are testable; pass nil for
// time.Now.
func New(catalog []core.Achievement, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	byID := make(map[string]core.Achievement, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}
	return &Reconciler{catalog: catalog, byID: byID, now: now}
}

// Reconcile walks the catalog in order and classifies each
// achievement's transition for one user.
//
// Rules, per achievement:
//   - already completed: terminal, no update emitted;
//   - absent from the computed map (failed or missing evaluator):
//     progress unchanged, but a first-time record is still created;
//   - computed value crosses the target: NewlyCompleted, exactly once
//     in the record's lifetime, with CompletedAt stamped here;
//   - computed value changed below the target: Progressed;
//   - otherwise: no write needed unless the record does not exist yet.
func (r *Reconciler) Reconcile(userID string, computed map[string]int64, existing []core.AchievementProgress) []Update {
	prior := make(map[string]core.AchievementProgress, len(existing))
	for _, p := range existing {
		prior[p.AchievementID] = p
	}

	var updates []Update
	for _, ach := range r.catalog {
		record, known := prior[ach.ID]
		if known && record.IsCompleted {
			continue
		}
		if !known {
			record = core.AchievementProgress{
				UserID:        userID,
				AchievementID: ach.ID,
			}
		}

		value, evaluated := computed[ach.ID]
		if !evaluated {
			if !known {
				updates = append(updates, Update{Achievement: ach, Progress: record, Transition: TransitionUnchanged})
			}
			continue
		}

		switch {
		case ach.Completed(value):
			record.Progress = value
			record.IsCompleted = true
			record.CompletedAt = r.now()
			updates = append(updates, Update{Achievement: ach, Progress: record, Transition: TransitionNewlyCompleted})
		case value != record.Progress:
			record.Progress = value
			updates = append(updates, Update{Achievement: ach, Progress: record, Transition: TransitionProgressed})
		case !known:
			updates = append(updates, Update{Achievement: ach, Progress: record, Transition: TransitionUnchanged})
		}
	}

	return updates
}

// Achievement looks up a catalog entry by ID.
func (r *Reconciler) Achievement(id string) (core.Achievement, bool) {
	a, ok := r.byID[id]
	return a, ok
}
