package markets

// scanner.go — resolves the currently live 15-minute Up/Down window to a
// market record. Candidate slugs are enumerated around the current slot and
// checked against the Gamma events index; per-candidate failures are
// skipped silently, an empty result is a normal outcome.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// slot offsets relative to the current 15-minute boundary
var slotOffsets = []int{-2, -1, 0, 1, 2}

// ScannerConfig bounds which windows are tradeable.
type ScannerConfig struct {
	Asset      string  // "BTC"
	MinMinutes float64 // reject markets closing sooner
	MaxMinutes float64 // reject markets closing later
}

// DefaultScannerConfig accepts minutesLeft ∈ [3, 12].
func DefaultScannerConfig(asset string) ScannerConfig {
	return ScannerConfig{Asset: asset, MinMinutes: 3, MaxMinutes: 12}
}

// SpikeScannerConfig widens the window for the spike strategy: [1, 14].
func SpikeScannerConfig(asset string) ScannerConfig {
	return ScannerConfig{Asset: asset, MinMinutes: 1, MaxMinutes: 14}
}

// Scanner implements ports.MarketProvider over the events index.
type Scanner struct {
	events ports.EventProvider
	cfg    ScannerConfig
}

// NewScanner creates a scanner for one asset.
func NewScanner(events ports.EventProvider, cfg ScannerConfig) *Scanner {
	return &Scanner{events: events, cfg: cfg}
}

// ScanMarkets returns zero or one market for the active window.
func (s *Scanner) ScanMarkets(ctx context.Context, now time.Time) ([]domain.Market, error) {
	var candidates []domain.Market

	for _, off := range slotOffsets {
		slug := s.slugFor(now, off)
		markets, err := s.events.FetchEventBySlug(ctx, slug)
		if err != nil {
			slog.Debug("scan: candidate failed", "slug", slug, "err", err)
			continue
		}
		for _, m := range markets {
			if !m.EndTime.After(now) {
				continue
			}
			m.Asset = s.cfg.Asset
			candidates = append(candidates, m)
		}
	}

	best, ok := pickBest(candidates, now)
	if !ok {
		return nil, nil
	}

	left := best.MinutesLeft(now)
	if left < s.cfg.MinMinutes || left > s.cfg.MaxMinutes {
		slog.Debug("scan: window outside trade range",
			"slug", best.Slug,
			"minutes_left", fmt.Sprintf("%.1f", left),
		)
		return nil, nil
	}

	return []domain.Market{best}, nil
}

// slugFor builds the event slug for the slot at the given offset:
// "{asset}-updown-15m-{unix}" over the slot start timestamp.
func (s *Scanner) slugFor(now time.Time, offset int) string {
	start := domain.WindowSlotStart(now).Add(time.Duration(offset) * 15 * time.Minute)
	return fmt.Sprintf("%s-updown-15m-%d", strings.ToLower(s.cfg.Asset), start.Unix())
}

// pickBest keeps one market: the one with the smallest minutesLeft still
// above one minute (the soonest window worth entering).
func pickBest(candidates []domain.Market, now time.Time) (domain.Market, bool) {
	var best domain.Market
	found := false
	for _, m := range candidates {
		left := m.MinutesLeft(now)
		if left <= 1 {
			continue
		}
		if !found || left < best.MinutesLeft(now) {
			best = m
			found = true
		}
	}
	return best, found
}
