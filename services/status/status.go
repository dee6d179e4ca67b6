// Package status tracks per-indexer success/failure outcomes and derives
// the exponential backoff window the filter and rate limiter both consult.
package status

import (
	"sync"
	"time"

	"github.com/relaycore/relaycore/models"
)

// Tracker records outcomes with at-least-once semantics: a dropped or
// duplicated RecordSuccess/RecordFailure call only ever makes the tracked
// state more conservative, never less.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]*models.IndexerStatus

	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewTracker builds a Tracker with the given backoff base and ceiling.
// Defaults of 30s base and 1h ceiling match typical indexer outage windows.
func NewTracker(backoffBase, backoffCap time.Duration) *Tracker {
	if backoffBase <= 0 {
		backoffBase = 30 * time.Second
	}
	if backoffCap <= 0 {
		backoffCap = time.Hour
	}
	return &Tracker{
		statuses:    make(map[string]*models.IndexerStatus),
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
	}
}

func (t *Tracker) getOrCreateLocked(indexerID string) *models.IndexerStatus {
	st, ok := t.statuses[indexerID]
	if !ok {
		st = &models.IndexerStatus{IndexerID: indexerID, IsEnabled: true, Priority: 25}
		t.statuses[indexerID] = st
	}
	return st
}

// RecordSuccess resets the failure counter and backoff window and stamps
// LastSuccessAt.
func (t *Tracker) RecordSuccess(indexerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.getOrCreateLocked(indexerID)
	st.ConsecutiveFailures = 0
	st.BackoffUntil = time.Time{}
	st.LastSuccessAt = time.Now()
	st.LastError = ""
}

// RecordFailure increments the failure counter and sets an exponential
// backoff window: base * 2^(failures-1), capped.
func (t *Tracker) RecordFailure(indexerID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.getOrCreateLocked(indexerID)
	st.ConsecutiveFailures++
	if err != nil {
		st.LastError = err.Error()
	}
	backoff := t.backoffBase << uint(st.ConsecutiveFailures-1)
	if backoff <= 0 || backoff > t.backoffCap {
		backoff = t.backoffCap
	}
	st.BackoffUntil = time.Now().Add(backoff)
}

// CanUse reports false iff the indexer is currently within its backoff
// window.
func (t *Tracker) CanUse(indexerID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[indexerID]
	if !ok {
		return true
	}
	return time.Now().After(st.BackoffUntil)
}

// GetStatusSync returns a snapshot copy of the last known state, or the
// enabled zero-value status when nothing has been recorded yet.
func (t *Tracker) GetStatusSync(indexerID string) models.IndexerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[indexerID]
	if !ok {
		return models.IndexerStatus{IndexerID: indexerID, IsEnabled: true, Priority: 25}
	}
	return *st
}

// SetEnabled toggles the enabled flag, e.g. from an admin surface.
func (t *Tracker) SetEnabled(indexerID string, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreateLocked(indexerID).IsEnabled = enabled
}

// SetPriority sets the sort priority used by the indexer filter.
func (t *Tracker) SetPriority(indexerID string, priority int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreateLocked(indexerID).Priority = priority
}
