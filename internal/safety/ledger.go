package safety

// ledger.go — daily counters, per-window dedup and the kill switch.
//
// Single-writer discipline: every mutation happens either on the
// coordinator tick or an HTTP control handler, serialized by the mutex.
// canTrade → TradeSize → RecordTrade → MarkTraded all call
// resetDailyIfNeeded first so they observe the same daily boundary.

import (
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/domain"
)

// Limits are the safety caps, fixed at construction.
type Limits struct {
	MaxTradeSize   float64 // USDC for HIGH confidence; MEDIUM = half
	DailyLossLimit float64 // cumulative USDC loss cap
	MaxDailyLosses int     // losing trades per day cap
}

// Verdict is the answer to CanTrade.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Snapshot is the read model for the dashboard.
type Snapshot struct {
	KillSwitch       bool    `json:"killSwitch"`
	DailyLossDollars float64 `json:"dailyLossDollars"`
	DailySpent       float64 `json:"dailySpentDollars"`
	DailyTradeCount  int     `json:"dailyTradeCount"`
	DailyWinCount    int     `json:"dailyWinCount"`
	DailyLossCount   int     `json:"dailyLossCount"`
	LastResetDate    string  `json:"lastResetDate"`
	TradedWindows    int     `json:"tradedWindows"`
	Limits           Limits  `json:"limits"`
}

// Ledger holds the mutable safety state.
type Ledger struct {
	mu sync.Mutex

	limits Limits
	bus    *activity.Bus
	now    func() time.Time

	killSwitch       bool
	dailyLossDollars float64
	dailySpent       float64
	dailyTradeCount  int
	dailyWinCount    int
	dailyLossCount   int
	lastResetDate    string
	tradedWindows    map[string]struct{}
}

// NewLedger creates a ledger with fresh counters for today.
func NewLedger(limits Limits, bus *activity.Bus) *Ledger {
	return newLedgerAt(limits, bus, time.Now)
}

func newLedgerAt(limits Limits, bus *activity.Bus, now func() time.Time) *Ledger {
	l := &Ledger{
		limits:        limits,
		bus:           bus,
		now:           now,
		tradedWindows: make(map[string]struct{}),
	}
	l.lastResetDate = localDate(l.now())
	return l
}

// CanTrade reports whether a new trade is allowed right now.
func (l *Ledger) CanTrade() Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyIfNeeded()

	switch {
	case l.killSwitch:
		return Verdict{Allowed: false, Reason: "kill switch on"}
	case l.dailyLossDollars >= l.limits.DailyLossLimit:
		return Verdict{Allowed: false, Reason: fmt.Sprintf("daily loss limit reached ($%.2f)", l.dailyLossDollars)}
	case l.dailyLossCount >= l.limits.MaxDailyLosses:
		return Verdict{Allowed: false, Reason: fmt.Sprintf("max daily losses reached (%d)", l.dailyLossCount)}
	}
	return Verdict{Allowed: true}
}

// TradeSize maps confidence to a dollar size, clamped to the remaining
// daily loss budget. LOW never trades.
func (l *Ledger) TradeSize(c domain.Confidence) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyIfNeeded()

	var size float64
	switch c {
	case domain.ConfidenceHigh:
		size = l.limits.MaxTradeSize
	case domain.ConfidenceMedium:
		size = l.limits.MaxTradeSize / 2
	default:
		return 0
	}

	remaining := l.limits.DailyLossLimit - l.dailyLossDollars
	if remaining < 0 {
		remaining = 0
	}
	if size > remaining {
		size = remaining
	}
	return size
}

// HasTraded reports whether the (asset, window) slot already got its trade.
func (l *Ledger) HasTraded(asset, windowKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyIfNeeded()
	_, ok := l.tradedWindows[asset+":"+windowKey]
	return ok
}

// MarkTraded records the slot as traded. Idempotent.
func (l *Ledger) MarkTraded(asset, windowKey string) {
	l.mu.Lock()
	l.resetDailyIfNeeded()
	l.tradedWindows[asset+":"+windowKey] = struct{}{}
	l.mu.Unlock()
	l.event(fmt.Sprintf("window marked traded: %s %s", asset, windowKey))
}

// RecordTrade adds a placed trade to the daily counters.
func (l *Ledger) RecordTrade(dollars float64) {
	l.mu.Lock()
	l.resetDailyIfNeeded()
	l.dailyTradeCount++
	l.dailySpent += dollars
	l.mu.Unlock()
	l.event(fmt.Sprintf("trade recorded: $%.2f", dollars))
}

// RecordWin counts a winning trade.
func (l *Ledger) RecordWin(dollars float64) {
	l.mu.Lock()
	l.resetDailyIfNeeded()
	l.dailyWinCount++
	l.mu.Unlock()
	l.event(fmt.Sprintf("win recorded: $%.2f", dollars))
}

// RecordLoss counts a losing trade and its dollars against the daily cap.
func (l *Ledger) RecordLoss(dollars float64) {
	l.mu.Lock()
	l.resetDailyIfNeeded()
	l.dailyLossCount++
	l.dailyLossDollars += dollars
	l.mu.Unlock()
	l.event(fmt.Sprintf("loss recorded: $%.2f", dollars))
}

// ToggleKillSwitch flips the switch and returns the new value.
func (l *Ledger) ToggleKillSwitch() bool {
	l.mu.Lock()
	l.killSwitch = !l.killSwitch
	v := l.killSwitch
	l.mu.Unlock()
	l.event(fmt.Sprintf("kill switch toggled: %v", v))
	return v
}

// SetKillSwitch forces the switch to v.
func (l *Ledger) SetKillSwitch(v bool) {
	l.mu.Lock()
	changed := l.killSwitch != v
	l.killSwitch = v
	l.mu.Unlock()
	if changed {
		l.event(fmt.Sprintf("kill switch set: %v", v))
	}
}

// Snapshot returns a consistent copy of the ledger state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetDailyIfNeeded()
	return Snapshot{
		KillSwitch:       l.killSwitch,
		DailyLossDollars: l.dailyLossDollars,
		DailySpent:       l.dailySpent,
		DailyTradeCount:  l.dailyTradeCount,
		DailyWinCount:    l.dailyWinCount,
		DailyLossCount:   l.dailyLossCount,
		LastResetDate:    l.lastResetDate,
		TradedWindows:    len(l.tradedWindows),
		Limits:           l.limits,
	}
}

// resetDailyIfNeeded clears the counters and the traded-window set when the
// local calendar day changed. Caller holds the mutex.
func (l *Ledger) resetDailyIfNeeded() {
	today := localDate(l.now())
	if today == l.lastResetDate {
		return
	}
	l.dailyLossDollars = 0
	l.dailySpent = 0
	l.dailyTradeCount = 0
	l.dailyWinCount = 0
	l.dailyLossCount = 0
	l.tradedWindows = make(map[string]struct{})
	l.lastResetDate = today
}

func (l *Ledger) event(msg string) {
	if l.bus != nil {
		l.bus.Log("safety", msg, "")
	}
}

func localDate(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
