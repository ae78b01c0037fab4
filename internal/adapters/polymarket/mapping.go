package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
)

// mapEventMarkets normaliza los mercados de un evento Gamma al dominio.
// Mercados sin par de tokens o sin endDate parseable se descartan.
func mapEventMarkets(ev gammaEvent, asset string) []domain.Market {
	if !ev.Active || ev.Closed {
		return nil
	}

	out := make([]domain.Market, 0, len(ev.Markets))
	for _, gm := range ev.Markets {
		if gm.Closed {
			continue
		}
		m, ok := mapGammaMarket(gm, asset)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func mapGammaMarket(gm gammaMarket, asset string) (domain.Market, bool) {
	tokenIDs := decodeStringArray(gm.ClobTokenIDs)
	if len(tokenIDs) != 2 {
		return domain.Market{}, false
	}

	endTime, err := parseEndDate(gm.EndDate)
	if err != nil {
		return domain.Market{}, false
	}

	outcomes := decodeStringArray(gm.Outcomes)
	tokens := [2]domain.Token{
		{TokenID: tokenIDs[0], Outcome: normalizeOutcome(outcomes, 0, "Up")},
		{TokenID: tokenIDs[1], Outcome: normalizeOutcome(outcomes, 1, "Down")},
	}

	tick, _ := gm.MinTickSize.Float64()

	return domain.Market{
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		EndTime:     endTime,
		Tokens:      tokens,
		NegRisk:     gm.NegRisk,
		TickSize:    tick,
		Asset:       asset,
	}, true
}

// decodeStringArray decodifica el formato Gamma de array JSON embebido en
// string: `"[\"a\",\"b\"]"`. Devuelve nil si no parsea.
func decodeStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// normalizeOutcome etiqueta el outcome como Up/Down: "Yes" se mapea a Up y
// "No" a Down por significado; si falta o no se reconoce se usa el fallback
// de su posición.
func normalizeOutcome(outcomes []string, idx int, fallback string) string {
	if idx < len(outcomes) {
		switch strings.ToLower(strings.TrimSpace(outcomes[idx])) {
		case "up", "yes":
			return "Up"
		case "down", "no":
			return "Down"
		}
	}
	return fallback
}

func parseEndDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// mapBook condensa el libro al resumen del snapshot: top 10 por lado,
// volúmenes agregados y mejores precios.
func mapBook(resp clobBookResponse) *domain.BookSummary {
	bids := mapLevelsDesc(resp.Bids)
	asks := mapLevelsAsc(resp.Asks)

	var bidVol, askVol float64
	for _, l := range bids {
		bidVol += l.Size
	}
	for _, l := range asks {
		askVol += l.Size
	}

	b := &domain.BookSummary{
		Bids:      top(bids, 10),
		Asks:      top(asks, 10),
		BidVolume: bidVol,
		AskVolume: askVol,
	}
	if askVol > 0 {
		b.BidAskRatio = bidVol / askVol
	}
	if len(bids) > 0 {
		b.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		b.BestAsk = asks[0].Price
	}
	if b.BestBid > 0 && b.BestAsk > 0 {
		b.Spread = b.BestAsk - b.BestBid
	}
	return b
}

// mapLevelsDesc ordena bids de mayor a menor precio.
func mapLevelsDesc(wire []bookLevelWire) []domain.BookLevel {
	levels := mapLevels(wire)
	sortLevels(levels, func(a, b domain.BookLevel) bool { return a.Price > b.Price })
	return levels
}

// mapLevelsAsc ordena asks de menor a mayor precio.
func mapLevelsAsc(wire []bookLevelWire) []domain.BookLevel {
	levels := mapLevels(wire)
	sortLevels(levels, func(a, b domain.BookLevel) bool { return a.Price < b.Price })
	return levels
}

func mapLevels(wire []bookLevelWire) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(wire))
	for _, l := range wire {
		p := parseFloat(l.Price)
		if p <= 0 {
			continue
		}
		out = append(out, domain.BookLevel{Price: p, Size: parseFloat(l.Size)})
	}
	return out
}

func sortLevels(levels []domain.BookLevel, less func(a, b domain.BookLevel) bool) {
	for i := 1; i < len(levels); i++ {
		for j := i; j > 0 && less(levels[j], levels[j-1]); j-- {
			levels[j], levels[j-1] = levels[j-1], levels[j]
		}
	}
}

func top(levels []domain.BookLevel, n int) []domain.BookLevel {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}

// mapHistory convierte el histórico del CLOB a puntos del dominio.
func mapHistory(resp clobHistoryResponse) []domain.HistoryPoint {
	out := make([]domain.HistoryPoint, 0, len(resp.History))
	for _, p := range resp.History {
		if p.T <= 0 {
			continue
		}
		out = append(out, domain.HistoryPoint{
			At:    time.Unix(p.T, 0).UTC(),
			Price: p.P,
		})
	}
	return out
}

// mapPositions normaliza las posiciones del Data API.
func mapPositions(wire []dataPosition, wallet string) []domain.Position {
	out := make([]domain.Position, 0, len(wire))
	for _, p := range wire {
		out = append(out, domain.Position{
			ConditionID: p.ConditionID,
			TokenID:     p.Asset,
			Size:        p.Size,
			CurPrice:    p.CurPrice,
			Redeemable:  p.Redeemable,
			NegRisk:     p.NegativeRisk,
			Title:       p.Title,
			Wallet:      wallet,
		})
	}
	return out
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
