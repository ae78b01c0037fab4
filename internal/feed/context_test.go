package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/updown/internal/domain"
)

var t0 = time.Date(2025, 3, 7, 14, 0, 0, 0, time.UTC)

// ramp builds one sample per second from start to end price over the
// given duration, ending at t0.
func ramp(start, end float64, dur time.Duration) []domain.PriceSample {
	n := int(dur.Seconds())
	samples := make([]domain.PriceSample, 0, n+1)
	for i := 0; i <= n; i++ {
		frac := float64(i) / float64(n)
		samples = append(samples, domain.PriceSample{
			Price: start + (end-start)*frac,
			Bid:   start - 1,
			Ask:   start + 1,
			At:    t0.Add(-dur + time.Duration(i)*time.Second),
		})
	}
	return samples
}

func TestBuildContext_Empty(t *testing.T) {
	pc := buildContext(nil, t0)
	assert.False(t, pc.Available)
}

func TestBuildContext_StaleSamples(t *testing.T) {
	samples := []domain.PriceSample{{Price: 100000, At: t0.Add(-61 * time.Second)}}
	pc := buildContext(samples, t0)
	assert.False(t, pc.Available)
}

func TestBuildContext_FreshWithin60s(t *testing.T) {
	samples := []domain.PriceSample{{Price: 100000, At: t0.Add(-59 * time.Second)}}
	pc := buildContext(samples, t0)
	assert.True(t, pc.Available)
	assert.Equal(t, 100000.0, pc.CurrentPrice)
}

func TestBuildContext_Changes(t *testing.T) {
	samples := ramp(100000, 100100, 10*time.Minute)
	pc := buildContext(samples, t0)

	require.True(t, pc.Available)
	assert.InDelta(t, 10.0, pc.Change1m.Dollars, 0.5)
	assert.InDelta(t, 30.0, pc.Change3m.Dollars, 0.5)
	assert.InDelta(t, 50.0, pc.Change5m.Dollars, 0.5)
	assert.InDelta(t, 100.0, pc.Change10m.Dollars, 0.5)
	assert.Equal(t, domain.DirectionFlat, pc.Direction) // 0.01% < 0.05%
}

func TestBuildContext_DirectionRising(t *testing.T) {
	// +100$ in the last minute on 100k ≈ +0.1% > 0.05%
	samples := ramp(100000, 100000, 5*time.Minute)
	samples = append(samples, domain.PriceSample{Price: 100100, At: t0})
	pc := buildContext(samples, t0)
	assert.Equal(t, domain.DirectionRising, pc.Direction)
}

func TestBuildContext_DirectionSymmetry(t *testing.T) {
	up := append(ramp(100000, 100000, 5*time.Minute), domain.PriceSample{Price: 100100, At: t0})
	down := append(ramp(100000, 100000, 5*time.Minute), domain.PriceSample{Price: 99900, At: t0})

	pcUp := buildContext(up, t0)
	pcDown := buildContext(down, t0)

	assert.Equal(t, domain.DirectionRising, pcUp.Direction)
	assert.Equal(t, domain.DirectionFalling, pcDown.Direction)
}

func TestChangeOver_ExactCutoffCountsAsOlder(t *testing.T) {
	cutoff := t0.Add(-60 * time.Second)
	samples := []domain.PriceSample{
		{Price: 100, At: cutoff}, // exactly at boundary → eligible
		{Price: 110, At: t0.Add(-30 * time.Second)},
		{Price: 120, At: t0},
	}
	c := changeOver(samples, 120, cutoff)
	assert.Equal(t, 20.0, c.Dollars)
}

func TestChangeOver_NoSampleOldEnough(t *testing.T) {
	samples := []domain.PriceSample{{Price: 100, At: t0}}
	c := changeOver(samples, 100, t0.Add(-time.Minute))
	assert.Equal(t, 0.0, c.Dollars)
	assert.Equal(t, 0.0, c.Percent)
}

func TestVolatility_Last30s(t *testing.T) {
	samples := []domain.PriceSample{
		{Price: 90000, At: t0.Add(-40 * time.Second)}, // outside window
		{Price: 100010, At: t0.Add(-20 * time.Second)},
		{Price: 99990, At: t0.Add(-10 * time.Second)},
		{Price: 100000, At: t0},
	}
	pc := buildContext(samples, t0)
	assert.InDelta(t, 20.0, pc.RecentVolatility, 0.001)
}

func TestFeedAppend_BoundedAndMonotone(t *testing.T) {
	f := New("", "BTC/USD")
	f.now = func() time.Time { return t0 }

	for i := 0; i < MaxHistory+50; i++ {
		f.append(domain.PriceSample{Price: 1, At: t0.Add(time.Duration(i) * time.Second)})
	}
	f.mu.RLock()
	n := len(f.samples)
	f.mu.RUnlock()
	assert.Equal(t, MaxHistory, n)

	// out-of-order sample gets clamped, never decreasing
	f.append(domain.PriceSample{Price: 2, At: t0})
	f.mu.RLock()
	lastTwo := f.samples[len(f.samples)-2:]
	f.mu.RUnlock()
	assert.False(t, lastTwo[1].At.Before(lastTwo[0].At))
}

func TestLatest_Stale(t *testing.T) {
	f := New("", "BTC/USD")
	now := t0
	f.now = func() time.Time { return now }

	f.append(domain.PriceSample{Price: 100000, Bid: 99999, Ask: 100001, At: t0})
	q := f.Latest()
	assert.False(t, q.Stale)
	assert.Equal(t, 100000.0, q.Price)

	now = t0.Add(31 * time.Second)
	assert.True(t, f.Latest().Stale)
}
