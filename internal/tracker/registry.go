package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"readtrack-backend/internal/metrics"
	"readtrack-backend/internal/models"
)

// Registry holds one Tracker per reader.
type Registry struct {
	mu         sync.Mutex
	trackers   map[string]*Tracker
	newTracker func() *Tracker
}

func NewRegistry(newTracker func() *Tracker) *Registry {
	return &Registry{
		trackers:   make(map[string]*Tracker),
		newTracker: newTracker,
	}
}

// Get returns the reader's tracker, creating it on first use.
func (r *Registry) Get(userID string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trackers[userID]
	if !ok {
		t = r.newTracker()
		r.trackers[userID] = t
		metrics.ActiveTrackers.Set(float64(len(r.trackers)))
	}
	return t
}

// Lookup returns the reader's tracker without creating one.
func (r *Registry) Lookup(userID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[userID]
	return t, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// StartSession opens a session on the reader's tracker, retrying once the
// tracker it raced with has been evicted.
func (r *Registry) StartSession(ctx context.Context, userID, articleID, articleTitle string, env models.Environment) (uuid.UUID, error) {
	for {
		id, err := r.Get(userID).StartSession(ctx, userID, articleID, articleTitle, env)
		if errors.Is(err, ErrRetired) {
			continue
		}
		return id, err
	}
}

// RecordScroll is a no-op for readers without a tracker.
func (r *Registry) RecordScroll(userID string, percentage int) (int, bool) {
	t, ok := r.Lookup(userID)
	if !ok {
		return 0, false
	}
	return t.RecordScroll(percentage)
}

func (r *Registry) SetFocus(userID string, focused bool) bool {
	t, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	t.SetFocus(focused)
	return true
}

func (r *Registry) EndSession(ctx context.Context, userID string) *models.ReadingSession {
	t, ok := r.Lookup(userID)
	if !ok {
		return nil
	}
	return t.EndSession(ctx)
}

func (r *Registry) CurrentSession(userID string) *models.ReadingSession {
	t, ok := r.Lookup(userID)
	if !ok {
		return nil
	}
	return t.CurrentSession()
}

// EvictIdle removes trackers whose last host input is before cutoff and
// returns them. Evicted trackers reject new sessions. A tracker in the middle
// of a start or end is skipped until the next sweep.
func (r *Registry) EvictIdle(cutoff time.Time) []*Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Tracker
	for userID, t := range r.trackers {
		if !t.LastSeen().Before(cutoff) {
			continue
		}
		if !t.lifecycle.TryLock() {
			continue
		}
		if t.LastSeen().Before(cutoff) {
			t.retire()
			delete(r.trackers, userID)
			evicted = append(evicted, t)
		}
		t.lifecycle.Unlock()
	}
	metrics.ActiveTrackers.Set(float64(len(r.trackers)))
	return evicted
}

// CloseAll force-ends every open session and waits for pending flushes.
// Used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) int {
	r.mu.Lock()
	all := make([]*Tracker, 0, len(r.trackers))
	for userID, t := range r.trackers {
		t.retire()
		all = append(all, t)
		delete(r.trackers, userID)
	}
	metrics.ActiveTrackers.Set(0)
	r.mu.Unlock()

	closed := 0
	for _, t := range all {
		if t.ForceEnd(ctx) != nil {
			closed++
		}
		t.Wait()
	}
	return closed
}
