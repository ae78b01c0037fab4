package policy

// spike.go — deterministic spike detector. Feeds only on the reference
// price context; the market snapshot is ignored. A spike is a move that
// clears both an absolute threshold and a speed threshold inside one of
// the short windows; the fastest window wins.

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
)

// Default spike thresholds (dollars, dollars/minute).
const (
	DefaultSpikeThreshold = 30.0
	DefaultMinSpikeSpeed  = 15.0

	highConfidenceSpeed = 30.0
)

// SpikeResult is the detector output, also consumed directly by the
// coordinator's fast path.
type SpikeResult struct {
	Detected bool          `json:"detected"`
	Window   time.Duration `json:"window"`
	Delta    float64       `json:"delta"` // signed dollars
	Speed    float64       `json:"speed"` // |dollars| per minute
}

// SpikeDetector implements ports.Policy.
type SpikeDetector struct {
	Threshold float64 // minimum |Δ$|
	MinSpeed  float64 // minimum $/min
}

// NewSpikeDetector applies defaults for zero-valued thresholds.
func NewSpikeDetector(threshold, minSpeed float64) *SpikeDetector {
	if threshold <= 0 {
		threshold = DefaultSpikeThreshold
	}
	if minSpeed <= 0 {
		minSpeed = DefaultMinSpikeSpeed
	}
	return &SpikeDetector{Threshold: threshold, MinSpeed: minSpeed}
}

func (d *SpikeDetector) Name() string { return "spike" }

// Detect scans the 60/180/300s windows and returns the fastest qualifying
// spike, if any.
func (d *SpikeDetector) Detect(feed domain.PriceContext) SpikeResult {
	if !feed.Available {
		return SpikeResult{}
	}

	windows := []struct {
		dur    time.Duration
		change domain.PriceChange
	}{
		{60 * time.Second, feed.Change1m},
		{180 * time.Second, feed.Change3m},
		{300 * time.Second, feed.Change5m},
	}

	var best SpikeResult
	for _, w := range windows {
		delta := w.change.Dollars
		mag := delta
		if mag < 0 {
			mag = -mag
		}
		speed := mag / w.dur.Minutes()
		if mag < d.Threshold || speed < d.MinSpeed {
			continue
		}
		if !best.Detected || speed > best.Speed {
			best = SpikeResult{Detected: true, Window: w.dur, Delta: delta, Speed: speed}
		}
	}
	return best
}

// Decide maps a detected spike to a directional buy.
func (d *SpikeDetector) Decide(_ context.Context, _ domain.MarketSnapshot, feed domain.PriceContext) domain.Decision {
	spike := d.Detect(feed)
	if !spike.Detected {
		return domain.Decision{
			Action:     domain.ActionSkip,
			Confidence: domain.ConfidenceLow,
			Reasoning:  "no spike",
		}.Normalize()
	}

	action := domain.ActionBuyYes
	if spike.Delta < 0 {
		action = domain.ActionBuyNo
	}
	confidence := domain.ConfidenceMedium
	if spike.Speed >= highConfidenceSpeed {
		confidence = domain.ConfidenceHigh
	}

	return domain.Decision{
		Action:     action,
		Confidence: confidence,
		Pattern:    fmt.Sprintf("spike_%dm", int(spike.Window.Minutes())),
		Reasoning: fmt.Sprintf("%.0f$ move in %v (%.1f$/min)",
			spike.Delta, spike.Window, spike.Speed),
	}.Normalize()
}
