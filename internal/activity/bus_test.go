package activity_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/domain"
)

func TestBus_Log_AssignsIDAndTimestamp(t *testing.T) {
	bus := activity.NewBus(nil)
	e := bus.Log("safety", "kill switch on", "")
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestBus_Activities_NewestFirst(t *testing.T) {
	bus := activity.NewBus(nil)
	bus.Log("scan", "first", "")
	bus.Log("scan", "second", "")

	got := bus.Activities(10)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Message)
	assert.Equal(t, "first", got[1].Message)
}

func TestBus_Activities_Bounded(t *testing.T) {
	bus := activity.NewBus(nil)
	for i := 0; i < 600; i++ {
		bus.Log("scan", fmt.Sprintf("msg %d", i), "")
	}
	got := bus.Activities(0)
	assert.Len(t, got, 500)
	assert.Equal(t, "msg 599", got[0].Message)
}

func TestBus_Activities_Limit(t *testing.T) {
	bus := activity.NewBus(nil)
	for i := 0; i < 5; i++ {
		bus.Log("scan", "x", "")
	}
	assert.Len(t, bus.Activities(3), 3)
}

func TestBus_UpdateTrade(t *testing.T) {
	bus := activity.NewBus(nil)
	trade := bus.AppendTrade(domain.TradeRecord{Side: "YES", Result: domain.TradeResultPending})

	win := domain.TradeResultWin
	ok := bus.UpdateTrade(trade.ID, domain.TradePatch{Result: &win})
	require.True(t, ok)

	got := bus.Trades(1)
	require.Len(t, got, 1)
	assert.Equal(t, domain.TradeResultWin, got[0].Result)
}

func TestBus_UpdateTrade_UnknownID(t *testing.T) {
	bus := activity.NewBus(nil)
	win := domain.TradeResultWin
	assert.False(t, bus.UpdateTrade("nope", domain.TradePatch{Result: &win}))
}
