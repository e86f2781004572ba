// Package refs tracks the content references surfaced during a conversation
// so later turns can resolve "that" back to the last big thing a tool
// produced. The tracker mirrors store liveness; it never owns the bytes.
package refs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/basket/recall/internal/contentstore"
)

// LivenessChecker is the slice of the content store the tracker needs.
type LivenessChecker interface {
	IsLive(ctx context.Context, id string) bool
}

// RefContext wraps one reference with display bookkeeping. The same
// reference re-added on a later turn gets a fresh RefContext.
type RefContext struct {
	Ref            contentstore.Reference
	ContextID      string
	Turn           int
	DisplayedAt    time.Time
	LastAccessedAt time.Time
}

// Tracker records references per conversation session. One session owns one
// tracker; turns are processed sequentially, so no locking.
type Tracker struct {
	store    LivenessChecker
	logger   *slog.Logger
	contexts map[string]*RefContext // keyed by reference id
	turn     int
	now      func() time.Time // injectable for tests
}

// NewTracker creates a tracker whose liveness checks go to store.
func NewTracker(store LivenessChecker, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:    store,
		logger:   logger,
		contexts: make(map[string]*RefContext),
		now:      time.Now,
	}
}

// AddReference registers a reference for the current turn and returns its
// context id, unique for the process lifetime. Re-adding the same reference
// id overwrites the previous entry (last write wins, new context id).
func (t *Tracker) AddReference(ref contentstore.Reference) string {
	t.turn++
	now := t.now()
	rc := &RefContext{
		Ref:            ref,
		ContextID:      "refctx-" + uuid.NewString(),
		Turn:           t.turn,
		DisplayedAt:    now,
		LastAccessedAt: now,
	}
	t.contexts[ref.ID] = rc
	t.logger.Debug("reference tracked", "id", shortID(ref.ID), "turn", t.turn)
	return rc.ContextID
}

// Len returns the number of tracked references.
func (t *Tracker) Len() int {
	return len(t.contexts)
}

// MostRecent returns the reference most recently displayed, refreshing its
// last-accessed time, or nil when nothing is tracked. Ties on identical
// display timestamps resolve to the higher turn counter, so the resolution
// is deterministic regardless of map iteration order.
func (t *Tracker) MostRecent() *contentstore.Reference {
	var best *RefContext
	for _, rc := range t.contexts {
		if best == nil ||
			rc.DisplayedAt.After(best.DisplayedAt) ||
			(rc.DisplayedAt.Equal(best.DisplayedAt) && rc.Turn > best.Turn) {
			best = rc
		}
	}
	if best == nil {
		return nil
	}
	best.LastAccessedAt = t.now()
	ref := best.Ref
	return &ref
}

// ValidationResult summarizes a liveness pass over tracked references.
type ValidationResult struct {
	Valid      int
	Invalid    int
	RemovedIDs []string
}

// ValidateAll asks the store for the liveness of every tracked reference
// and evicts the dead ones.
func (t *Tracker) ValidateAll(ctx context.Context) ValidationResult {
	var res ValidationResult
	for id := range t.contexts {
		if t.store.IsLive(ctx, id) {
			res.Valid++
			continue
		}
		res.Invalid++
		res.RemovedIDs = append(res.RemovedIDs, id)
		delete(t.contexts, id)
	}
	if res.Invalid > 0 {
		t.logger.Info("evicted stale references", "count", res.Invalid)
	}
	return res
}

// CleanupOld evicts contexts not accessed within maxAge. Purely age-based;
// the store is not consulted.
func (t *Tracker) CleanupOld(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)
	removed := 0
	for id, rc := range t.contexts {
		if rc.LastAccessedAt.Before(cutoff) {
			delete(t.contexts, id)
			removed++
		}
	}
	return removed
}

// Clear drops all tracked contexts and resets the turn counter.
func (t *Tracker) Clear() {
	t.contexts = make(map[string]*RefContext)
	t.turn = 0
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
