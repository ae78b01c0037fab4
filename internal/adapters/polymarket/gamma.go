package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/updown/internal/domain"
)

const gammaEventsPath = "/events"

// FetchEventBySlug consulta el índice de eventos por slug exacto y devuelve
// los mercados normalizados. Slug inexistente → lista vacía, no error.
func (c *Client) FetchEventBySlug(ctx context.Context, slug string) ([]domain.Market, error) {
	return c.fetchEventBySlugAs(ctx, slug, assetFromSlug(slug))
}

func (c *Client) fetchEventBySlugAs(ctx context.Context, slug, asset string) ([]domain.Market, error) {
	u := fmt.Sprintf("%s%s?slug=%s", c.gammaBase, gammaEventsPath, url.QueryEscape(slug))

	var resp []gammaEvent
	if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("gamma.FetchEventBySlug %q: %w", slug, err)
	}

	var markets []domain.Market
	for _, ev := range resp {
		markets = append(markets, mapEventMarkets(ev, asset)...)
	}
	return markets, nil
}

// assetFromSlug extrae el símbolo del slug "btc-updown-15m-{ts}" → "BTC".
func assetFromSlug(slug string) string {
	for i := 0; i < len(slug); i++ {
		if slug[i] == '-' {
			return upper(slug[:i])
		}
	}
	return upper(slug)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
