package activity

// bus.go — in-memory append-only logs for the dashboard and the audit
// recorder. Three bounded rings (activities, decisions, trades), newest
// first, cap 500 each. No persistence: the rings die with the process.

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

const maxEntries = 500

// Entry is one activity-log line.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // "safety" | "scan" | "decision" | "trade" | "redemption" | ...
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
}

// DecisionEntry is one recorded policy decision with its market context.
type DecisionEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Strategy  string          `json:"strategy"`
	Market    string          `json:"market"`
	Decision  domain.Decision `json:"decision"`
}

// Bus holds the three rings. Single writer preferred; all methods are safe
// for concurrent readers and hand out copies.
type Bus struct {
	mu         sync.Mutex
	activities []Entry
	decisions  []DecisionEntry
	trades     []domain.TradeRecord
	recorder   ports.Recorder
}

// NewBus creates an empty bus. recorder may be nil.
func NewBus(recorder ports.Recorder) *Bus {
	return &Bus{recorder: recorder}
}

// Log appends an activity entry and returns it with id and timestamp set.
func (b *Bus) Log(kind, message, detail string) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
		Detail:    detail,
	}

	b.mu.Lock()
	b.activities = prependBounded(b.activities, e)
	rec := b.recorder
	b.mu.Unlock()

	if rec != nil {
		// Best effort: the audit sink never blocks the bot.
		_ = rec.RecordEvent(e.Timestamp, kind, message, detail)
	}
	return e
}

// LogDecision appends a decision entry.
func (b *Bus) LogDecision(strategy, market string, d domain.Decision) DecisionEntry {
	e := DecisionEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Strategy:  strategy,
		Market:    market,
		Decision:  d,
	}
	b.mu.Lock()
	b.decisions = prependBoundedDecision(b.decisions, e)
	b.mu.Unlock()
	return e
}

// AppendTrade stores a trade record, assigning id and timestamp if unset.
func (b *Bus) AppendTrade(t domain.TradeRecord) domain.TradeRecord {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	b.mu.Lock()
	b.trades = prependBoundedTrade(b.trades, t)
	b.mu.Unlock()
	return t
}

// UpdateTrade patches a stored trade in place. Used only by result
// reconciliation. Returns false when the id is unknown (already evicted).
func (b *Bus) UpdateTrade(id string, patch domain.TradePatch) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.trades {
		if b.trades[i].ID != id {
			continue
		}
		if patch.Result != nil {
			b.trades[i].Result = *patch.Result
		}
		if patch.OrderID != nil {
			b.trades[i].OrderID = *patch.OrderID
		}
		if patch.Error != nil {
			b.trades[i].Error = *patch.Error
		}
		return true
	}
	return false
}

// Activities returns the most recent limit entries (all when limit <= 0).
func (b *Bus) Activities(limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyBounded(b.activities, limit)
}

// Decisions returns the most recent limit decisions.
func (b *Bus) Decisions(limit int) []DecisionEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyBounded(b.decisions, limit)
}

// Trades returns the most recent limit trades.
func (b *Bus) Trades(limit int) []domain.TradeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyBounded(b.trades, limit)
}

func prependBounded(s []Entry, e Entry) []Entry {
	s = append([]Entry{e}, s...)
	if len(s) > maxEntries {
		s = s[:maxEntries]
	}
	return s
}

func prependBoundedDecision(s []DecisionEntry, e DecisionEntry) []DecisionEntry {
	s = append([]DecisionEntry{e}, s...)
	if len(s) > maxEntries {
		s = s[:maxEntries]
	}
	return s
}

func prependBoundedTrade(s []domain.TradeRecord, t domain.TradeRecord) []domain.TradeRecord {
	s = append([]domain.TradeRecord{t}, s...)
	if len(s) > maxEntries {
		s = s[:maxEntries]
	}
	return s
}

func copyBounded[T any](s []T, limit int) []T {
	n := len(s)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, n)
	copy(out, s[:n])
	return out
}
