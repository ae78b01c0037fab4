package polymarket

// types.go — wire types for the Gamma, CLOB and Data APIs. Normalized into
// domain records in mapping.go; unknown fields are dropped by the decoder.

import "encoding/json"

// gammaEvent is one entry of GET /events?slug=...
type gammaEvent struct {
	ID      string        `json:"id"`
	Slug    string        `json:"slug"`
	Active  bool          `json:"active"`
	Closed  bool          `json:"closed"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarket is the market payload nested in an event.
type gammaMarket struct {
	ConditionID  string      `json:"conditionId"`
	Question     string      `json:"question"`
	Slug         string      `json:"slug"`
	EndDate      string      `json:"endDate"`
	Active       bool        `json:"active"`
	Closed       bool        `json:"closed"`
	NegRisk      bool        `json:"negRisk"`
	ClobTokenIDs string      `json:"clobTokenIds"` // JSON array encoded as string
	Outcomes     string      `json:"outcomes"`     // JSON array encoded as string
	MinTickSize  json.Number `json:"orderPriceMinTickSize"`
}

// clobPriceResponse is GET /price?token_id=..&side=..
type clobPriceResponse struct {
	Price string `json:"price"`
}

// clobMidpointResponse is GET /midpoint?token_id=..
type clobMidpointResponse struct {
	Mid string `json:"mid"`
}

// clobSpreadResponse is GET /spread?token_id=..
type clobSpreadResponse struct {
	Spread string `json:"spread"`
}

// clobBookResponse is GET /book?token_id=..
type clobBookResponse struct {
	Bids []bookLevelWire `json:"bids"`
	Asks []bookLevelWire `json:"asks"`
}

type bookLevelWire struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// clobHistoryResponse is GET /prices-history?market=..
type clobHistoryResponse struct {
	History []historyPointWire `json:"history"`
}

type historyPointWire struct {
	T int64   `json:"t"` // unix seconds
	P float64 `json:"p"`
}

// dataPosition is one entry of the Data API GET /positions?user=..
type dataPosition struct {
	ConditionID  string  `json:"conditionId"`
	Asset        string  `json:"asset"` // token id
	Size         float64 `json:"size"`
	CurPrice     float64 `json:"curPrice"`
	Redeemable   bool    `json:"redeemable"`
	NegativeRisk bool    `json:"negativeRisk"`
	Title        string  `json:"title"`
	ProxyWallet  string  `json:"proxyWallet"`
}
