package polymarket

// clob.go — CLOB market-data endpoints used per decision: best prices,
// midpoint, order book, spread and minute-level price history. Every helper
// returns nil/empty on failure; the snapshot fetcher tolerates holes.

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/updown/internal/domain"
)

// BestPrice devuelve el mejor precio para un token y side ("buy"|"sell").
// nil cuando el endpoint no tiene precio.
func (c *Client) BestPrice(ctx context.Context, tokenID, side string) (*float64, error) {
	u := fmt.Sprintf("%s/price?token_id=%s&side=%s", c.clobBase, tokenID, side)

	var resp clobPriceResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("clob.BestPrice: %w", err)
	}
	p := parseFloat(resp.Price)
	if p <= 0 {
		return nil, nil
	}
	return &p, nil
}

// Midpoint devuelve el midpoint del CLOB para un token.
func (c *Client) Midpoint(ctx context.Context, tokenID string) (*float64, error) {
	u := fmt.Sprintf("%s/midpoint?token_id=%s", c.clobBase, tokenID)

	var resp clobMidpointResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("clob.Midpoint: %w", err)
	}
	p := parseFloat(resp.Mid)
	if p <= 0 {
		return nil, nil
	}
	return &p, nil
}

// Spread devuelve el spread del book para un token.
func (c *Client) Spread(ctx context.Context, tokenID string) (*float64, error) {
	u := fmt.Sprintf("%s/spread?token_id=%s", c.clobBase, tokenID)

	var resp clobSpreadResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("clob.Spread: %w", err)
	}
	s := parseFloat(resp.Spread)
	return &s, nil
}

// OrderBook devuelve el resumen del libro para un token.
func (c *Client) OrderBook(ctx context.Context, tokenID string) (*domain.BookSummary, error) {
	u := fmt.Sprintf("%s/book?token_id=%s", c.clobBase, tokenID)

	var resp clobBookResponse
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("clob.OrderBook: %w", err)
	}
	return mapBook(resp), nil
}

// PriceHistory devuelve el histórico a fidelidad de 1 minuto. Si el
// endpoint primario falla o devuelve un histórico vacío se intenta el
// fallback con interval=1h.
func (c *Client) PriceHistory(ctx context.Context, tokenID string) ([]domain.HistoryPoint, error) {
	primary := fmt.Sprintf("%s/prices-history?market=%s&interval=1m&fidelity=1", c.clobBase, tokenID)

	var resp clobHistoryResponse
	if err := c.get(ctx, c.clobLimiter, primary, &resp); err == nil && len(resp.History) > 0 {
		return mapHistory(resp), nil
	}

	fallback := fmt.Sprintf("%s/prices-history?market=%s&interval=1h&fidelity=1", c.clobBase, tokenID)
	resp = clobHistoryResponse{}
	if err := c.get(ctx, c.clobLimiter, fallback, &resp); err != nil {
		return nil, fmt.Errorf("clob.PriceHistory: %w", err)
	}
	return mapHistory(resp), nil
}
