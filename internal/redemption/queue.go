package redemption

// queue.go — pending redemptions. Plain append-only list, deduped by
// condition id (token id when no condition is known), with a 20-entry
// history ring of terminal entries for the dashboard.

import (
	"sync"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
)

const historySize = 20

// Queue is the process-wide pending-redemption list. Single writer (the
// coordinator/engine); readers get copies.
type Queue struct {
	mu      sync.Mutex
	pending []domain.PendingRedemption
	history []domain.PendingRedemption

	totalRedeemed int
	totalLost     int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Append enqueues an entry unless its key is already present (pending).
// Returns true when the entry was added.
func (q *Queue) Append(p domain.PendingRedemption) bool {
	if p.Key() == "" {
		return false
	}
	if p.Status == "" {
		p.Status = domain.RedemptionWaiting
	}
	if p.AddedAt.IsZero() {
		p.AddedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.pending {
		if e.Key() == p.Key() {
			return false
		}
	}
	q.pending = append(q.pending, p)
	return true
}

// Pending returns a copy of the pending list.
func (q *Queue) Pending() []domain.PendingRedemption {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.PendingRedemption, len(q.pending))
	copy(out, q.pending)
	return out
}

// History returns a copy of the terminal-entry ring, newest first.
func (q *Queue) History() []domain.PendingRedemption {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.PendingRedemption, len(q.history))
	copy(out, q.history)
	return out
}

// Totals returns the redeemed/lost counters.
func (q *Queue) Totals() (redeemed, lost int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalRedeemed, q.totalLost
}

// SetStatus updates the entry with the given key. Terminal statuses move
// the entry from pending to history. Returns false on unknown key.
func (q *Queue) SetStatus(key string, mutate func(*domain.PendingRedemption)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.pending {
		if q.pending[i].Key() != key {
			continue
		}
		mutate(&q.pending[i])
		if q.pending[i].Status.Terminal() {
			q.archiveLocked(q.pending[i])
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
		}
		return true
	}
	return false
}

// archiveLocked pushes a terminal entry into the bounded history ring.
func (q *Queue) archiveLocked(p domain.PendingRedemption) {
	switch p.Status {
	case domain.RedemptionRedeemed:
		q.totalRedeemed++
	case domain.RedemptionNoPayout:
		q.totalLost++
	}
	q.history = append([]domain.PendingRedemption{p}, q.history...)
	if len(q.history) > historySize {
		q.history = q.history[:historySize]
	}
}
