package domain

import "time"

// TokenPrice holds the CLOB prices for one side of the market.
// Buy/Sell/Mid are nil when the corresponding endpoint had no data.
type TokenPrice struct {
	Buy  *float64 `json:"buy"`
	Sell *float64 `json:"sell"`
	Mid  *float64 `json:"mid"`
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// BookSummary is the condensed order book for one token: top 10 levels
// per side plus aggregate volumes and best prices.
type BookSummary struct {
	Bids        []BookLevel `json:"bids"`
	Asks        []BookLevel `json:"asks"`
	BidVolume   float64     `json:"bidVolume"`
	AskVolume   float64     `json:"askVolume"`
	BidAskRatio float64     `json:"bidAskRatio"`
	BestBid     float64     `json:"bestBid"`
	BestAsk     float64     `json:"bestAsk"`
	Spread      float64     `json:"spread"`
}

// HistoryPoint is one sample of the market's own price history (1-minute
// fidelity from the CLOB).
type HistoryPoint struct {
	At    time.Time `json:"t"`
	Price float64   `json:"price"`
}

// TokenData bundles prices and book for one outcome token.
type TokenData struct {
	TokenID string       `json:"tokenId"`
	Price   TokenPrice   `json:"price"`
	Book    *BookSummary `json:"book"`
}

// MarketSnapshot is the full per-decision view of a market. Built fresh on
// every tick; sub-fields are nil when the corresponding fetch failed.
type MarketSnapshot struct {
	Market       Market         `json:"-"`
	YesToken     TokenData      `json:"yesToken"`
	NoToken      TokenData      `json:"noToken"`
	PriceHistory []HistoryPoint `json:"priceHistory"`
	FetchedAt    time.Time      `json:"fetchedAt"`
}

// SideData returns the token data matching the decision action.
func (s MarketSnapshot) SideData(action Action) TokenData {
	if action == ActionBuyNo {
		return s.NoToken
	}
	return s.YesToken
}

// HasAnyMid reports whether at least one side has a usable midpoint.
func (s MarketSnapshot) HasAnyMid() bool {
	return s.YesToken.Price.Mid != nil || s.NoToken.Price.Mid != nil
}
