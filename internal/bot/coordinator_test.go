package bot_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/bot"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/policy"
	"github.com/alejandrodnm/updown/internal/redemption"
	"github.com/alejandrodnm/updown/internal/safety"
)

// ---- fakes ----

type fakeFeed struct{ ctx domain.PriceContext }

func (f *fakeFeed) Context() domain.PriceContext { return f.ctx }

type fakeMarkets struct {
	markets []domain.Market
	calls   int
}

func (f *fakeMarkets) ScanMarkets(context.Context, time.Time) ([]domain.Market, error) {
	f.calls++
	return f.markets, nil
}

type fakeFetcher struct{ snapshot domain.MarketSnapshot }

func (f *fakeFetcher) FetchFullMarketData(_ context.Context, m domain.Market) domain.MarketSnapshot {
	snap := f.snapshot
	snap.Market = m
	return snap
}

type fakeExecutor struct {
	calls int
	trade domain.TradeRecord
	sizes []float64
}

func (f *fakeExecutor) Execute(_ context.Context, d domain.Decision, snap domain.MarketSnapshot, size float64) domain.TradeRecord {
	f.calls++
	f.sizes = append(f.sizes, size)
	t := f.trade
	t.Action = d.Action
	t.Side = d.Side()
	t.ConditionID = snap.Market.ConditionID
	t.TokenID = snap.SideData(d.Action).TokenID
	t.Size = size
	return t
}

type fakePolicy struct{ decision domain.Decision }

func (f *fakePolicy) Decide(context.Context, domain.MarketSnapshot, domain.PriceContext) domain.Decision {
	return f.decision
}
func (f *fakePolicy) Name() string { return "fake" }

// idleChain keeps the redemption engine inert during coordinator tests.
type idleChain struct{}

func (idleChain) Connect(context.Context) error            { return nil }
func (idleChain) SignerAddress() string                    { return "0xSigner" }
func (idleChain) ProxyAddress(context.Context) string      { return "" }
func (idleChain) WrappedCollateral(context.Context) string { return "" }
func (idleChain) PayoutDenominator(context.Context, string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (idleChain) TokenBalance(context.Context, string, string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (idleChain) Redeem(context.Context, domain.RedeemAttempt, string) domain.RedeemResult {
	return domain.RedeemResult{}
}

// ---- fixtures ----

func spikingFeed() *fakeFeed {
	return &fakeFeed{ctx: domain.PriceContext{
		Available: true,
		Change1m:  domain.PriceChange{Dollars: 50, Percent: 0.05},
	}}
}

func upDownMarket() domain.Market {
	return domain.Market{
		ConditionID: "0xc0ffee",
		Question:    "Bitcoin Up or Down",
		Asset:       "BTC",
		EndTime:     time.Now().Add(10 * time.Minute).UTC(),
		NegRisk:     true,
		Tokens: [2]domain.Token{
			{TokenID: "111", Outcome: "Up"},
			{TokenID: "222", Outcome: "Down"},
		},
	}
}

func snapshotWithMids(yesMid, noMid float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		YesToken: domain.TokenData{TokenID: "111", Price: domain.TokenPrice{Mid: &yesMid}},
		NoToken:  domain.TokenData{TokenID: "222", Price: domain.TokenPrice{Mid: &noMid}},
	}
}

type harness struct {
	coordinator *bot.Coordinator
	ledger      *safety.Ledger
	bus         *activity.Bus
	queue       *redemption.Queue
	executor    *fakeExecutor
	markets     *fakeMarkets
}

func newHarness(feed bot.PriceSource, markets *fakeMarkets, snap domain.MarketSnapshot, executor *fakeExecutor) *harness {
	bus := activity.NewBus(nil)
	ledger := safety.NewLedger(safety.Limits{MaxTradeSize: 10, DailyLossLimit: 50, MaxDailyLosses: 6}, bus)
	queue := redemption.NewQueue()
	engine := redemption.NewEngine(idleChain{}, queue, bus)
	spike := policy.NewSpikeDetector(30, 15)

	c := bot.New(bot.Config{
		ScanInterval:  time.Second,
		Asset:         "BTC",
		MaxEntryPrice: 0.45,
		SpikeMode:     true,
	}, ledger, feed, markets, &fakeFetcher{snapshot: snap}, spike, spike, executor, queue, engine, bus)
	c.Start()

	return &harness{coordinator: c, ledger: ledger, bus: bus, queue: queue, executor: executor, markets: markets}
}

// ---- scenarios ----

func TestTick_HappyPath(t *testing.T) {
	executor := &fakeExecutor{trade: domain.TradeRecord{
		OrderID: "A",
		Result:  domain.TradeResultPending,
	}}
	markets := &fakeMarkets{markets: []domain.Market{upDownMarket()}}
	h := newHarness(spikingFeed(), markets, snapshotWithMids(0.20, 0.78), executor)

	h.coordinator.Tick(context.Background())

	require.Equal(t, 1, executor.calls)
	assert.Equal(t, []float64{10}, executor.sizes) // HIGH confidence → max size

	trades := h.bus.Trades(10)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeResultPending, trades[0].Result)
	assert.Equal(t, "YES", trades[0].Side)

	assert.True(t, h.ledger.HasTraded("BTC", domain.WindowKey(markets.markets[0].EndTime)))

	pending := h.queue.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].NegRisk)
	assert.Equal(t, "0xc0ffee", pending[0].ConditionID)
}

func TestTick_DedupSameWindow(t *testing.T) {
	executor := &fakeExecutor{trade: domain.TradeRecord{OrderID: "A", Result: domain.TradeResultPending}}
	markets := &fakeMarkets{markets: []domain.Market{upDownMarket()}}
	h := newHarness(spikingFeed(), markets, snapshotWithMids(0.20, 0.78), executor)

	h.coordinator.Tick(context.Background())
	h.coordinator.Tick(context.Background())

	assert.Equal(t, 1, executor.calls)
	assert.Len(t, h.queue.Pending(), 1)
}

func TestTick_LossCapBlocks(t *testing.T) {
	executor := &fakeExecutor{}
	markets := &fakeMarkets{markets: []domain.Market{upDownMarket()}}
	h := newHarness(spikingFeed(), markets, snapshotWithMids(0.20, 0.78), executor)

	for i := 0; i < 6; i++ {
		h.ledger.RecordLoss(1)
	}

	h.coordinator.Tick(context.Background())

	assert.Zero(t, executor.calls)
	assert.Zero(t, markets.calls) // blocked before discovery

	var blocked bool
	for _, e := range h.bus.Activities(0) {
		if e.Kind == "safety_block" {
			blocked = true
		}
	}
	assert.True(t, blocked)
}

func TestTick_EntryGateBoundary(t *testing.T) {
	// mid exactly 0.45 is accepted
	executor := &fakeExecutor{trade: domain.TradeRecord{OrderID: "A", Result: domain.TradeResultPending}}
	h := newHarness(spikingFeed(), &fakeMarkets{markets: []domain.Market{upDownMarket()}},
		snapshotWithMids(0.45, 0.56), executor)
	h.coordinator.Tick(context.Background())
	assert.Equal(t, 1, executor.calls)

	// mid above 0.45 is priced in → skip
	executor2 := &fakeExecutor{}
	h2 := newHarness(spikingFeed(), &fakeMarkets{markets: []domain.Market{upDownMarket()}},
		snapshotWithMids(0.46, 0.55), executor2)
	h2.coordinator.Tick(context.Background())
	assert.Zero(t, executor2.calls)

	decisions := h2.bus.Decisions(10)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.ActionSkip, decisions[0].Decision.Action)
	assert.Contains(t, decisions[0].Decision.Reasoning, "priced in")
}

func TestTick_NoSpikeSkipsDiscovery(t *testing.T) {
	executor := &fakeExecutor{}
	markets := &fakeMarkets{markets: []domain.Market{upDownMarket()}}
	quiet := &fakeFeed{ctx: domain.PriceContext{Available: true}}
	h := newHarness(quiet, markets, snapshotWithMids(0.20, 0.78), executor)

	h.coordinator.Tick(context.Background())

	assert.Zero(t, markets.calls)
	assert.Zero(t, executor.calls)
}

func TestTick_NoMidSkips(t *testing.T) {
	executor := &fakeExecutor{}
	h := newHarness(spikingFeed(), &fakeMarkets{markets: []domain.Market{upDownMarket()}},
		domain.MarketSnapshot{}, executor)
	h.coordinator.Tick(context.Background())
	assert.Zero(t, executor.calls)
}

func TestTick_FailedTradeDoesNotMarkWindow(t *testing.T) {
	executor := &fakeExecutor{trade: domain.TradeRecord{Result: domain.TradeResultFailed, Error: "rejected"}}
	markets := &fakeMarkets{markets: []domain.Market{upDownMarket()}}
	h := newHarness(spikingFeed(), markets, snapshotWithMids(0.20, 0.78), executor)

	h.coordinator.Tick(context.Background())

	assert.Equal(t, 1, executor.calls)
	assert.False(t, h.ledger.HasTraded("BTC", domain.WindowKey(markets.markets[0].EndTime)))
	assert.Empty(t, h.queue.Pending())
}

func TestTick_StoppedDoesNothing(t *testing.T) {
	executor := &fakeExecutor{}
	markets := &fakeMarkets{markets: []domain.Market{upDownMarket()}}
	h := newHarness(spikingFeed(), markets, snapshotWithMids(0.20, 0.78), executor)
	h.coordinator.Stop()

	h.coordinator.Tick(context.Background())
	assert.Zero(t, markets.calls)
	assert.False(t, h.coordinator.IsRunning())
}

func TestStatus(t *testing.T) {
	h := newHarness(spikingFeed(), &fakeMarkets{}, domain.MarketSnapshot{}, &fakeExecutor{})
	h.coordinator.Tick(context.Background())

	status := h.coordinator.Status()
	assert.True(t, status.IsRunning)
	require.NotNil(t, status.LastScanTime)
	require.NotNil(t, status.LastSpike)
	assert.True(t, status.LastSpike.Detected)
}
