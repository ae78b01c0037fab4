package polymarket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStringArray(t *testing.T) {
	got := decodeStringArray(`["111","222"]`)
	assert.Equal(t, []string{"111", "222"}, got)

	assert.Nil(t, decodeStringArray(""))
	assert.Nil(t, decodeStringArray("not json"))
}

func TestNormalizeOutcome(t *testing.T) {
	assert.Equal(t, "Up", normalizeOutcome([]string{"Up", "Down"}, 0, "Up"))
	assert.Equal(t, "Down", normalizeOutcome([]string{"Up", "Down"}, 1, "Down"))
	// Yes/No labels map by meaning
	assert.Equal(t, "Up", normalizeOutcome([]string{"Yes", "No"}, 0, "Down"))
	assert.Equal(t, "Down", normalizeOutcome([]string{"Yes", "No"}, 1, "Up"))
	// missing labels fall back by position
	assert.Equal(t, "Up", normalizeOutcome(nil, 0, "Up"))
	assert.Equal(t, "Down", normalizeOutcome([]string{"???"}, 0, "Down"))
}

func TestMapGammaMarket(t *testing.T) {
	gm := gammaMarket{
		ConditionID:  "0xc0ffee",
		Question:     "Bitcoin Up or Down - March 7, 2:00PM ET",
		Slug:         "btc-updown-15m-1741356000",
		EndDate:      "2025-03-07T19:15:00Z",
		NegRisk:      true,
		ClobTokenIDs: `["111","222"]`,
		Outcomes:     `["Up","Down"]`,
		MinTickSize:  "0.01",
	}
	m, ok := mapGammaMarket(gm, "BTC")
	require.True(t, ok)
	assert.Equal(t, "0xc0ffee", m.ConditionID)
	assert.True(t, m.NegRisk)
	assert.Equal(t, 0.01, m.TickSize)
	assert.Equal(t, "111", m.UpToken().TokenID)
	assert.Equal(t, "222", m.DownToken().TokenID)
	assert.Equal(t, 2025, m.EndTime.Year())
}

func TestMapGammaMarket_RejectsBadPayloads(t *testing.T) {
	// missing token pair
	_, ok := mapGammaMarket(gammaMarket{EndDate: "2025-03-07T19:15:00Z", ClobTokenIDs: `["1"]`}, "BTC")
	assert.False(t, ok)

	// unparseable end date
	_, ok = mapGammaMarket(gammaMarket{EndDate: "soon", ClobTokenIDs: `["1","2"]`}, "BTC")
	assert.False(t, ok)
}

func TestMapEventMarkets_InactiveEventDropped(t *testing.T) {
	ev := gammaEvent{Active: false, Markets: []gammaMarket{{
		EndDate: "2025-03-07T19:15:00Z", ClobTokenIDs: `["1","2"]`,
	}}}
	assert.Empty(t, mapEventMarkets(ev, "BTC"))

	ev = gammaEvent{Active: true, Closed: true}
	assert.Empty(t, mapEventMarkets(ev, "BTC"))
}

func TestMapBook(t *testing.T) {
	resp := clobBookResponse{
		Bids: []bookLevelWire{
			{Price: "0.30", Size: "100"},
			{Price: "0.35", Size: "50"}, // out of order on purpose
		},
		Asks: []bookLevelWire{
			{Price: "0.45", Size: "80"},
			{Price: "0.40", Size: "20"},
		},
	}
	b := mapBook(resp)
	require.NotNil(t, b)
	assert.Equal(t, 0.35, b.BestBid)
	assert.Equal(t, 0.40, b.BestAsk)
	assert.InDelta(t, 0.05, b.Spread, 1e-9)
	assert.Equal(t, 150.0, b.BidVolume)
	assert.Equal(t, 100.0, b.AskVolume)
	assert.InDelta(t, 1.5, b.BidAskRatio, 1e-9)
}

func TestMapBook_Top10(t *testing.T) {
	var resp clobBookResponse
	for i := 0; i < 15; i++ {
		resp.Bids = append(resp.Bids, bookLevelWire{Price: "0.30", Size: "1"})
	}
	b := mapBook(resp)
	assert.Len(t, b.Bids, 10)
	assert.Equal(t, 15.0, b.BidVolume) // volume counts all levels
}

func TestAssetFromSlug(t *testing.T) {
	assert.Equal(t, "BTC", assetFromSlug("btc-updown-15m-1741356000"))
	assert.Equal(t, "ETH", assetFromSlug("eth-updown-15m-1741356000"))
}
