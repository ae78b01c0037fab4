package feed

// context.go — derived statistics over the sample history. Pure functions
// over a copied slice so the lock is never held during computation.

import (
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
)

var changeWindows = []struct {
	dur time.Duration
	set func(*domain.PriceContext, domain.PriceChange)
}{
	{60 * time.Second, func(pc *domain.PriceContext, c domain.PriceChange) { pc.Change1m = c }},
	{180 * time.Second, func(pc *domain.PriceContext, c domain.PriceChange) { pc.Change3m = c }},
	{300 * time.Second, func(pc *domain.PriceContext, c domain.PriceChange) { pc.Change5m = c }},
	{600 * time.Second, func(pc *domain.PriceContext, c domain.PriceChange) { pc.Change10m = c }},
}

// buildContext computes the price context at instant now. Available is
// false when the newest sample is older than 60s (or there are none).
func buildContext(samples []domain.PriceSample, now time.Time) domain.PriceContext {
	var pc domain.PriceContext
	n := len(samples)
	if n == 0 {
		return pc
	}

	last := samples[n-1]
	if now.Sub(last.At) > availableWithin {
		return pc
	}

	pc.Available = true
	pc.CurrentPrice = last.Price
	pc.Bid = last.Bid
	pc.Ask = last.Ask

	for _, w := range changeWindows {
		w.set(&pc, changeOver(samples, last.Price, now.Add(-w.dur)))
	}

	pc.Direction = domain.ClassifyDirection(pc.Change1m.Percent)
	pc.Momentum = domain.ClassifyMomentum(pc.Change1m.Percent, pc.Change3m.Percent)
	pc.RecentVolatility = volatility(samples, now.Add(-30*time.Second))
	return pc
}

// changeOver computes current − oldest_sample_with_time ≤ cutoff. A sample
// exactly at the cutoff counts in the "older" partition. Zero change when
// no sample is old enough.
func changeOver(samples []domain.PriceSample, current float64, cutoff time.Time) domain.PriceChange {
	var base *domain.PriceSample
	for i := len(samples) - 1; i >= 0; i-- {
		if !samples[i].At.After(cutoff) {
			base = &samples[i]
			break
		}
	}
	if base == nil || base.Price == 0 {
		return domain.PriceChange{}
	}
	dollars := current - base.Price
	return domain.PriceChange{
		Dollars: dollars,
		Percent: dollars / base.Price * 100,
	}
}

// volatility is max − min price since cutoff.
func volatility(samples []domain.PriceSample, cutoff time.Time) float64 {
	var lo, hi float64
	first := true
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].At.Before(cutoff) {
			break
		}
		p := samples[i].Price
		if first {
			lo, hi = p, p
			first = false
			continue
		}
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return hi - lo
}
