package domain

import "time"

// TradeResult is the lifecycle state of an executed trade.
type TradeResult string

const (
	TradeResultPending TradeResult = "pending"
	TradeResultWin     TradeResult = "win"
	TradeResultLoss    TradeResult = "loss"
	TradeResultFailed  TradeResult = "failed"
)

// TradeRecord is the in-memory record of one order placement attempt.
// Created by the executor; Result is patched later by reconciliation.
type TradeRecord struct {
	ID            string      `json:"id"`
	Timestamp     time.Time   `json:"timestamp"`
	Action        Action      `json:"action"`
	Side          string      `json:"side"` // "YES" | "NO"
	TokenID       string      `json:"tokenId"`
	ConditionID   string      `json:"conditionId"`
	Size          float64     `json:"size"`  // USDC
	Price         float64     `json:"price"` // [0,1]
	Shares        float64     `json:"shares"`
	OrderID       string      `json:"orderId,omitempty"`
	Result        TradeResult `json:"result"`
	Error         string      `json:"error,omitempty"`
	Question      string      `json:"question"`
	MarketEndTime time.Time   `json:"marketEndTime"`
	NegRisk       bool        `json:"negRisk"`
}

// Success reports whether the executor got an order accepted.
func (t TradeRecord) Success() bool {
	return t.Result != TradeResultFailed && t.OrderID != ""
}

// TradePatch is a partial update applied to a stored trade record.
type TradePatch struct {
	Result  *TradeResult
	OrderID *string
	Error   *string
}

// RetryPolicy describes the executor's bounded retry behavior.
// Soft rejects back off SoftBackoff·attempt; hard rejects (geoblock, 403)
// back off HardBackoff·attempt.
type RetryPolicy struct {
	MaxAttempts int
	SoftBackoff time.Duration
	HardBackoff time.Duration
}

// DefaultRetryPolicy matches the CLOB's observed tolerance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		SoftBackoff: 3 * time.Second,
		HardBackoff: 5 * time.Second,
	}
}
