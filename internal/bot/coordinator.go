package bot

// coordinator.go — ties the subsystems together on a periodic cadence.
//
// One tick at a time: the ticker fires into TryLock, so a slow tick is
// skipped rather than stacked. The redemption pass runs on every tick even
// when trading is blocked; the kill switch only stops new entries.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/policy"
	"github.com/alejandrodnm/updown/internal/ports"
	"github.com/alejandrodnm/updown/internal/redemption"
	"github.com/alejandrodnm/updown/internal/safety"
)

// Config is the coordinator's tunables.
type Config struct {
	ScanInterval  time.Duration
	Asset         string  // "BTC"
	MaxEntryPrice float64 // entry gate on the chosen side's mid
	SpikeMode     bool    // deterministic fast path drives decisions
}

// Status is the read model behind GET /api/status.
type Status struct {
	IsRunning    bool                `json:"isRunning"`
	LastScanTime *time.Time          `json:"lastScanTime,omitempty"`
	LastSpike    *policy.SpikeResult `json:"lastSpikeStatus,omitempty"`
	Safety       safety.Snapshot     `json:"safety"`
}

// PriceSource is the slice of the feed the coordinator reads.
type PriceSource interface {
	Context() domain.PriceContext
}

// Coordinator runs the scan loop.
type Coordinator struct {
	cfg      Config
	ledger   *safety.Ledger
	feed     PriceSource
	markets  ports.MarketProvider
	fetcher  ports.MarketDataProvider
	policy   ports.Policy
	spike    *policy.SpikeDetector
	executor ports.OrderExecutor
	queue    *redemption.Queue
	engine   *redemption.Engine
	bus      *activity.Bus

	running atomic.Bool
	tickMu  sync.Mutex

	mu        sync.Mutex
	lastScan  *time.Time
	lastSpike *policy.SpikeResult
}

// New wires a coordinator. spike is the fast-path detector, used for the
// preamble in spike mode and ignored otherwise.
func New(cfg Config, ledger *safety.Ledger, f PriceSource, markets ports.MarketProvider,
	fetcher ports.MarketDataProvider, pol ports.Policy, spike *policy.SpikeDetector,
	executor ports.OrderExecutor, queue *redemption.Queue, engine *redemption.Engine,
	bus *activity.Bus) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		ledger:   ledger,
		feed:     f,
		markets:  markets,
		fetcher:  fetcher,
		policy:   pol,
		spike:    spike,
		executor: executor,
		queue:    queue,
		engine:   engine,
		bus:      bus,
	}
}

// Run blocks until the context ends, ticking every ScanInterval.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("coordinator stopped")
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Start enables trading ticks.
func (c *Coordinator) Start() {
	if c.running.CompareAndSwap(false, true) {
		c.bus.Log("bot", "bot started", "")
	}
}

// Stop disables trading ticks. In-flight work completes.
func (c *Coordinator) Stop() {
	if c.running.CompareAndSwap(true, false) {
		c.bus.Log("bot", "bot stopped", "")
	}
}

// IsRunning reports the loop state.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Status builds the dashboard read model.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	lastScan := c.lastScan
	lastSpike := c.lastSpike
	c.mu.Unlock()
	return Status{
		IsRunning:    c.running.Load(),
		LastScanTime: lastScan,
		LastSpike:    lastSpike,
		Safety:       c.ledger.Snapshot(),
	}
}

// Tick runs one scan cycle. Overlapping invocations are skipped.
func (c *Coordinator) Tick(ctx context.Context) {
	if !c.tickMu.TryLock() {
		slog.Debug("tick skipped: previous still running")
		return
	}
	defer c.tickMu.Unlock()

	if c.running.Load() {
		c.scan(ctx)
	}

	// Redemption reconciles independently of the trading gate.
	c.engine.CheckAndRedeem(ctx)
}

func (c *Coordinator) scan(ctx context.Context) {
	now := time.Now().UTC()
	c.mu.Lock()
	c.lastScan = &now
	c.mu.Unlock()

	verdict := c.ledger.CanTrade()
	if !verdict.Allowed {
		c.bus.Log("safety_block", verdict.Reason, "")
		return
	}

	feedCtx := c.feed.Context()

	// Fast path: in spike mode a quiet feed means nothing to look at.
	var spikeDecision *domain.Decision
	if c.cfg.SpikeMode {
		result := c.spike.Detect(feedCtx)
		c.mu.Lock()
		c.lastSpike = &result
		c.mu.Unlock()
		if !result.Detected {
			return
		}
		d := c.spike.Decide(ctx, domain.MarketSnapshot{}, feedCtx)
		spikeDecision = &d
	}

	found, err := c.markets.ScanMarkets(ctx, now)
	if err != nil {
		slog.Warn("market scan failed", "err", err)
		return
	}
	if len(found) == 0 {
		return
	}
	market := found[0]

	windowKey := domain.WindowKey(market.EndTime)
	if c.ledger.HasTraded(market.Asset, windowKey) {
		slog.Debug("window already traded", "asset", market.Asset, "window", windowKey)
		return
	}

	snapshot := c.fetcher.FetchFullMarketData(ctx, market)
	if !snapshot.HasAnyMid() {
		c.bus.Log("scan", "snapshot without prices, skipping", market.Slug)
		return
	}

	var decision domain.Decision
	if spikeDecision != nil {
		decision = *spikeDecision
	} else {
		decision = c.policy.Decide(ctx, snapshot, feedCtx)
	}
	decision = c.applyEntryGate(decision, snapshot)
	c.bus.LogDecision(c.policy.Name(), market.Slug, decision)

	if decision.Action == domain.ActionSkip {
		return
	}

	// The ladder of checks can take seconds; re-validate the gate.
	if v := c.ledger.CanTrade(); !v.Allowed {
		c.bus.Log("safety_block", v.Reason, "")
		return
	}

	size := c.ledger.TradeSize(decision.Confidence)
	if size <= 0 {
		c.bus.Log("trade", "zero size after clamp, skipping", "")
		return
	}

	trade := c.executor.Execute(ctx, decision, snapshot, size)
	trade = c.bus.AppendTrade(trade)

	if !trade.Success() {
		c.bus.Log("trade", "order failed: "+trade.Error, market.Slug)
		return
	}

	c.ledger.RecordTrade(size)
	c.ledger.MarkTraded(market.Asset, windowKey)
	c.queue.Append(domain.PendingRedemption{
		ConditionID:   market.ConditionID,
		TokenID:       trade.TokenID,
		NegRisk:       market.NegRisk,
		MarketEndTime: market.EndTime,
		Question:      market.Question,
		Status:        domain.RedemptionWaiting,
	})

	c.bus.Log("trade",
		fmt.Sprintf("placed %s $%.2f @ %.3f", trade.Side, trade.Size, trade.Price),
		trade.OrderID,
	)
}

// applyEntryGate converts the decision to SKIP when the chosen side's mid
// is already above the max entry price — the move is priced in.
func (c *Coordinator) applyEntryGate(d domain.Decision, snapshot domain.MarketSnapshot) domain.Decision {
	if d.Action == domain.ActionSkip {
		return d
	}
	mid := snapshot.SideData(d.Action).Price.Mid
	if mid == nil {
		d.Action = domain.ActionSkip
		d.Reasoning = "no mid on chosen side"
		return d
	}
	if *mid > c.cfg.MaxEntryPrice {
		d.Action = domain.ActionSkip
		d.Reasoning = fmt.Sprintf("priced in (mid %.3f > %.2f)", *mid, c.cfg.MaxEntryPrice)
	}
	return d
}
