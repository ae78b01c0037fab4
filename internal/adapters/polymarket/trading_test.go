package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/domain"
)

// well-known throwaway key (hardhat account #0)
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testCreds() Credentials {
	return Credentials{APIKey: "k", Secret: "c2VjcmV0", Passphrase: "p"}
}

func testSnapshot(buyYes float64) domain.MarketSnapshot {
	buy := buyYes
	sell := buyYes - 0.02
	mid := (buy + sell) / 2
	return domain.MarketSnapshot{
		Market: domain.Market{
			ConditionID: "0xc0ffee",
			Question:    "Bitcoin Up or Down",
			EndTime:     time.Now().Add(10 * time.Minute),
			NegRisk:     true,
			TickSize:    0.01,
			Tokens: [2]domain.Token{
				{TokenID: "111", Outcome: "Up"},
				{TokenID: "222", Outcome: "Down"},
			},
		},
		YesToken:  domain.TokenData{TokenID: "111", Price: domain.TokenPrice{Buy: &buy, Sell: &sell, Mid: &mid}},
		NoToken:   domain.TokenData{TokenID: "222"},
		FetchedAt: time.Now(),
	}
}

func executorFor(t *testing.T, srv *httptest.Server) *TradingClient {
	t.Helper()
	auth, err := NewAuthClient(NewClient(srv.URL, "", ""), testPrivateKey, testCreds())
	require.NoError(t, err)
	tc := NewTradingClient(auth, domain.DefaultRetryPolicy(), 0)
	tc.sleep = func(time.Duration) {} // no backoff waits in tests
	return tc
}

func buyDecision() domain.Decision {
	return domain.Decision{Action: domain.ActionBuyYes, Confidence: domain.ConfidenceHigh}
}

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.Equal(t, "k", r.Header.Get("POLY_API_KEY"))
		w.Write([]byte(`{"success":true,"orderID":"0xorder1","status":"live"}`))
	}))
	defer srv.Close()

	trade := executorFor(t, srv).Execute(context.Background(), buyDecision(), testSnapshot(0.40), 10)

	assert.Equal(t, domain.TradeResultPending, trade.Result)
	assert.Equal(t, "0xorder1", trade.OrderID)
	assert.True(t, trade.Success())
	assert.Equal(t, "YES", trade.Side)
	assert.Equal(t, "111", trade.TokenID)
	assert.Equal(t, 0.40, trade.Price)
	assert.Equal(t, 25.0, trade.Shares) // floor2(10 / 0.40)
	assert.True(t, trade.NegRisk)
}

func TestExecute_SoftRejectExhaustsRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"success":false,"errorMsg":"not enough balance"}`))
	}))
	defer srv.Close()

	trade := executorFor(t, srv).Execute(context.Background(), buyDecision(), testSnapshot(0.40), 10)

	assert.Equal(t, domain.TradeResultFailed, trade.Result)
	assert.False(t, trade.Success())
	assert.Equal(t, "not enough balance", trade.Error)
	assert.Equal(t, 3, calls)
}

func TestExecute_HardRejectRecordsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`blocked region`))
	}))
	defer srv.Close()

	trade := executorFor(t, srv).Execute(context.Background(), buyDecision(), testSnapshot(0.40), 10)

	assert.Equal(t, domain.TradeResultFailed, trade.Result)
	assert.Equal(t, "rate-limited", trade.Error)
}

func TestExecute_TinySizeFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	trade := executorFor(t, srv).Execute(context.Background(), buyDecision(), testSnapshot(0.40), 0.001)
	assert.Equal(t, domain.TradeResultFailed, trade.Result)
	assert.Equal(t, "order size too small", trade.Error)
}

func TestEntryPrice(t *testing.T) {
	buy := 0.423
	mid := 0.38

	// buy wins when present, rounded to tick
	assert.InDelta(t, 0.42, entryPrice(domain.TokenPrice{Buy: &buy, Mid: &mid}, 0.01), 1e-9)

	// mid when no buy
	assert.InDelta(t, 0.38, entryPrice(domain.TokenPrice{Mid: &mid}, 0.01), 1e-9)

	// 0.5 default when nothing
	assert.Equal(t, 0.5, entryPrice(domain.TokenPrice{}, 0.01))

	// finer tick keeps more precision
	assert.InDelta(t, 0.423, entryPrice(domain.TokenPrice{Buy: &buy}, 0.001), 1e-9)
}

func TestIsHardReject(t *testing.T) {
	assert.True(t, isHardReject(http.StatusForbidden, ""))
	assert.True(t, isHardReject(http.StatusBadRequest, `{"error":"address BLOCKED"}`))
	assert.False(t, isHardReject(http.StatusBadRequest, `{"error":"bad price"}`))
}

func TestFloor2(t *testing.T) {
	assert.Equal(t, 25.0, floor2(10/0.4))
	assert.Equal(t, 33.33, floor2(10.0/0.3))
}

func TestDetectPricePrecision(t *testing.T) {
	assert.Equal(t, int64(100), detectPricePrecision(0.60))
	assert.Equal(t, int64(1000), detectPricePrecision(0.673))
	assert.Equal(t, int64(10000), detectPricePrecision(0.1234))
}
