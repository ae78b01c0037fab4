package markets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/domain"
)

type fakeCLOB struct {
	buy, sell map[string]float64 // tokenID → price, missing = error
	books     map[string]*domain.BookSummary
	history   []domain.HistoryPoint
	spread    float64
	spreadErr error
}

func (f *fakeCLOB) BestPrice(_ context.Context, tokenID, side string) (*float64, error) {
	m := f.buy
	if side == "sell" {
		m = f.sell
	}
	p, ok := m[tokenID]
	if !ok {
		return nil, errors.New("no price")
	}
	return &p, nil
}

func (f *fakeCLOB) Midpoint(context.Context, string) (*float64, error) {
	return nil, errors.New("unused")
}

func (f *fakeCLOB) OrderBook(_ context.Context, tokenID string) (*domain.BookSummary, error) {
	b, ok := f.books[tokenID]
	if !ok {
		return nil, errors.New("no book")
	}
	return b, nil
}

func (f *fakeCLOB) PriceHistory(context.Context, string) ([]domain.HistoryPoint, error) {
	if f.history == nil {
		return nil, errors.New("no history")
	}
	return f.history, nil
}

func (f *fakeCLOB) Spread(context.Context, string) (*float64, error) {
	if f.spreadErr != nil {
		return nil, f.spreadErr
	}
	return &f.spread, nil
}

func testMarket() domain.Market {
	return domain.Market{
		ConditionID: "0xabc",
		EndTime:     time.Now().Add(10 * time.Minute),
		Tokens: [2]domain.Token{
			{TokenID: "up", Outcome: "Up"},
			{TokenID: "down", Outcome: "Down"},
		},
	}
}

func TestFetcher_ComputesMid(t *testing.T) {
	clob := &fakeCLOB{
		buy:  map[string]float64{"up": 0.40, "down": 0.62},
		sell: map[string]float64{"up": 0.38, "down": 0.58},
		books: map[string]*domain.BookSummary{
			"up":   {BestBid: 0.38, BestAsk: 0.40},
			"down": {BestBid: 0.58, BestAsk: 0.62},
		},
		history: []domain.HistoryPoint{{Price: 0.39}},
		spread:  0.02,
	}

	snap := NewFetcher(clob).FetchFullMarketData(context.Background(), testMarket())

	require.NotNil(t, snap.YesToken.Price.Mid)
	assert.InDelta(t, 0.39, *snap.YesToken.Price.Mid, 1e-9)
	require.NotNil(t, snap.NoToken.Price.Mid)
	assert.InDelta(t, 0.60, *snap.NoToken.Price.Mid, 1e-9)
	assert.True(t, snap.HasAnyMid())

	// spread endpoint overrides the yes book's derived spread
	require.NotNil(t, snap.YesToken.Book)
	assert.Equal(t, 0.02, snap.YesToken.Book.Spread)

	require.Len(t, snap.PriceHistory, 1)
}

func TestFetcher_MissingSideLeavesNil(t *testing.T) {
	clob := &fakeCLOB{
		buy:  map[string]float64{"up": 0.40},
		sell: map[string]float64{}, // sell always errors
	}
	snap := NewFetcher(clob).FetchFullMarketData(context.Background(), testMarket())

	assert.NotNil(t, snap.YesToken.Price.Buy)
	assert.Nil(t, snap.YesToken.Price.Sell)
	assert.Nil(t, snap.YesToken.Price.Mid)
	assert.Nil(t, snap.YesToken.Book)
	assert.Nil(t, snap.PriceHistory)
	assert.False(t, snap.HasAnyMid())
}

func TestFetcher_NeverFails(t *testing.T) {
	clob := &fakeCLOB{spreadErr: errors.New("down")}
	snap := NewFetcher(clob).FetchFullMarketData(context.Background(), testMarket())
	assert.Equal(t, "0xabc", snap.Market.ConditionID)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestSnapshot_SideData(t *testing.T) {
	mid := 0.3
	snap := domain.MarketSnapshot{
		YesToken: domain.TokenData{TokenID: "up", Price: domain.TokenPrice{Mid: &mid}},
		NoToken:  domain.TokenData{TokenID: "down"},
	}
	assert.Equal(t, "up", snap.SideData(domain.ActionBuyYes).TokenID)
	assert.Equal(t, "down", snap.SideData(domain.ActionBuyNo).TokenID)
}
