package markets

// fetcher.go — per-decision market snapshot. Fires all sub-requests for
// both tokens concurrently (the client's token bucket self-limits the
// goroutines, same pattern as the batch book fetch this was lifted from).
// A failed sub-request leaves its field nil; the call never fails.

import (
	"context"
	"sync"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
)

// CLOBDataClient is the slice of the CLOB client the fetcher needs.
type CLOBDataClient interface {
	BestPrice(ctx context.Context, tokenID, side string) (*float64, error)
	Midpoint(ctx context.Context, tokenID string) (*float64, error)
	OrderBook(ctx context.Context, tokenID string) (*domain.BookSummary, error)
	PriceHistory(ctx context.Context, tokenID string) ([]domain.HistoryPoint, error)
	Spread(ctx context.Context, tokenID string) (*float64, error)
}

// Fetcher implements ports.MarketDataProvider.
type Fetcher struct {
	clob    CLOBDataClient
	timeout time.Duration
}

// NewFetcher creates a fetcher with the standard 10s per-call deadline.
func NewFetcher(clob CLOBDataClient) *Fetcher {
	return &Fetcher{clob: clob, timeout: 10 * time.Second}
}

// FetchFullMarketData snapshots both tokens concurrently.
func (f *Fetcher) FetchFullMarketData(ctx context.Context, market domain.Market) domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		Market:    market,
		FetchedAt: time.Now().UTC(),
	}

	up := market.UpToken()
	down := market.DownToken()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		snap.YesToken = f.fetchToken(ctx, up.TokenID, true)
	}()
	go func() {
		defer wg.Done()
		snap.NoToken = f.fetchToken(ctx, down.TokenID, false)
	}()
	go func() {
		defer wg.Done()
		snap.PriceHistory = f.fetchHistory(ctx, up.TokenID)
	}()
	wg.Wait()

	return snap
}

// fetchToken gathers prices and book for one token. The spread endpoint is
// only queried on the yes side; the book spread covers the other.
func (f *Fetcher) fetchToken(ctx context.Context, tokenID string, withSpread bool) domain.TokenData {
	data := domain.TokenData{TokenID: tokenID}

	var spread *float64
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		data.Price.Buy = f.price(ctx, tokenID, "buy")
	}()
	go func() {
		defer wg.Done()
		data.Price.Sell = f.price(ctx, tokenID, "sell")
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		if book, err := f.clob.OrderBook(cctx, tokenID); err == nil {
			data.Book = book
		}
	}()
	if withSpread {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()
			if sp, err := f.clob.Spread(cctx, tokenID); err == nil {
				spread = sp
			}
		}()
	}
	wg.Wait()

	if spread != nil && data.Book != nil {
		data.Book.Spread = *spread
	}

	if data.Price.Buy != nil && data.Price.Sell != nil {
		mid := (*data.Price.Buy + *data.Price.Sell) / 2
		data.Price.Mid = &mid
	}
	return data
}

func (f *Fetcher) price(ctx context.Context, tokenID, side string) *float64 {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	p, err := f.clob.BestPrice(cctx, tokenID, side)
	if err != nil {
		return nil
	}
	return p
}

func (f *Fetcher) fetchHistory(ctx context.Context, tokenID string) []domain.HistoryPoint {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	points, err := f.clob.PriceHistory(cctx, tokenID)
	if err != nil {
		return nil
	}
	return points
}
