package polymarket

// trading.go — order execution against the CLOB.
//
// Implements ports.OrderExecutor. One buy per call, GTC, bounded retries
// with linear backoff. Hard rejects (geoblock, 403, "blocked") use the
// longer hard backoff and are recorded as "rate-limited". The executor never returns an
// error: the outcome lives inside the TradeRecord so the activity log keeps
// the venue's reject text verbatim.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/updown/internal/domain"
)

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth       *AuthClient
	retry      domain.RetryPolicy
	feeRateBps int
	sleep      func(time.Duration)
}

// NewTradingClient creates the executor. feeRateBps raises the fee-rate
// limit for aggressive (spike) entries; 0 for the default path.
func NewTradingClient(auth *AuthClient, retry domain.RetryPolicy, feeRateBps int) *TradingClient {
	return &TradingClient{
		auth:       auth,
		retry:      retry,
		feeRateBps: feeRateBps,
		sleep:      time.Sleep,
	}
}

// Execute places a buy order for the side chosen by the decision.
func (tc *TradingClient) Execute(ctx context.Context, decision domain.Decision, snapshot domain.MarketSnapshot, sizeUSDC float64) domain.TradeRecord {
	market := snapshot.Market
	side := snapshot.SideData(decision.Action)

	price := entryPrice(side.Price, market.EffectiveTickSize())
	shares := floor2(sizeUSDC / price)

	trade := domain.TradeRecord{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Action:        decision.Action,
		Side:          decision.Side(),
		TokenID:       side.TokenID,
		ConditionID:   market.ConditionID,
		Size:          sizeUSDC,
		Price:         price,
		Shares:        shares,
		Result:        domain.TradeResultFailed,
		Question:      market.Question,
		MarketEndTime: market.EndTime,
		NegRisk:       market.NegRisk,
	}

	if shares <= 0 {
		trade.Error = "order size too small"
		return trade
	}

	if err := tc.auth.EnsureCreds(ctx); err != nil {
		trade.Error = "credentials: " + err.Error()
		return trade
	}

	signed, err := tc.auth.buildSignedOrder(side.TokenID, price, shares, market.NegRisk, tc.feeRateBps)
	if err != nil {
		trade.Error = "sign: " + err.Error()
		return trade
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       side.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          "BUY",
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: "GTC",
	}

	for attempt := 1; attempt <= tc.retry.MaxAttempts; attempt++ {
		var resp clobOrderResponse
		status, raw, err := tc.auth.doL2Once(ctx, http.MethodPost, "/order", body, &resp)

		if err == nil && resp.Success && resp.OrderID != "" {
			trade.OrderID = resp.OrderID
			trade.Result = domain.TradeResultPending
			trade.Error = ""
			slog.Info("order placed",
				"order_id", resp.OrderID,
				"side", trade.Side,
				"price", price,
				"shares", shares,
				"attempt", attempt,
			)
			return trade
		}

		hard := isHardReject(status, raw)
		if hard {
			trade.Error = "rate-limited"
		} else if err != nil {
			trade.Error = err.Error()
		} else {
			trade.Error = resp.ErrorMsg
		}

		slog.Warn("order rejected",
			"attempt", attempt,
			"hard", hard,
			"status", status,
			"err", trade.Error,
		)

		if attempt == tc.retry.MaxAttempts {
			break
		}
		backoff := tc.retry.SoftBackoff
		if hard {
			backoff = tc.retry.HardBackoff
		}
		tc.sleep(backoff * time.Duration(attempt))

		if ctx.Err() != nil {
			trade.Error = ctx.Err().Error()
			break
		}
	}

	return trade
}

// entryPrice picks buy ?? mid ?? 0.5 and rounds to the tick size.
func entryPrice(p domain.TokenPrice, tick float64) float64 {
	raw := 0.5
	switch {
	case p.Buy != nil && *p.Buy > 0:
		raw = *p.Buy
	case p.Mid != nil && *p.Mid > 0:
		raw = *p.Mid
	}
	if tick <= 0 {
		tick = 0.01
	}
	return math.Round(raw/tick) * tick
}

// isHardReject detects geoblocks and explicit blocks: mechanism identical
// to a soft reject but with the longer HardBackoff and a fixed reason.
func isHardReject(status int, body string) bool {
	if status == http.StatusForbidden {
		return true
	}
	return strings.Contains(strings.ToLower(body), "blocked")
}

// floor2 truncates to cents. The epsilon keeps exact quotients like
// 10/0.40 from landing a hair under the integer they represent.
func floor2(v float64) float64 {
	return math.Floor(v*100+1e-6) / 100
}
