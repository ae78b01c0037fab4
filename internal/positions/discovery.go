package positions

// discovery.go — startup enumeration of redeemable positions.
//
// Queries the off-chain positions index for both the signer and its proxy
// wallet, merges the results and enqueues anything that looks claimable.
// Entries get a synthetic marketEndTime in the past so the next redemption
// tick picks them up immediately.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
	"github.com/alejandrodnm/updown/internal/redemption"
)

// syntheticAge backdates discovered positions past the resolution grace.
const syntheticAge = 10 * time.Minute

// Discovery scans the positions index and feeds the redemption queue.
type Discovery struct {
	index ports.PositionsProvider
	chain ports.ChainRedeemer
	queue *redemption.Queue
	bus   *activity.Bus

	mu         sync.Mutex
	hasScanned bool
	lastScan   *domain.PositionScan
}

// NewDiscovery wires the scanner.
func NewDiscovery(index ports.PositionsProvider, chain ports.ChainRedeemer, queue *redemption.Queue, bus *activity.Bus) *Discovery {
	return &Discovery{index: index, chain: chain, queue: queue, bus: bus}
}

// ScanOnStartup runs the scan a single time. Later calls are no-ops;
// use Scan for the manual trigger.
func (d *Discovery) ScanOnStartup(ctx context.Context) {
	d.mu.Lock()
	if d.hasScanned {
		d.mu.Unlock()
		return
	}
	d.hasScanned = true
	d.mu.Unlock()

	d.Scan(ctx)
}

// Scan queries both wallets and enqueues redeemable positions.
func (d *Discovery) Scan(ctx context.Context) domain.PositionScan {
	signer := d.chain.SignerAddress()
	proxy := d.chain.ProxyAddress(ctx)

	scan := domain.PositionScan{
		ScannedAt: time.Now().UTC().Format(time.RFC3339),
		Signer:    signer,
		Proxy:     proxy,
	}

	wallets := []string{signer}
	if proxy != "" && proxy != signer {
		wallets = append(wallets, proxy)
	}

	seen := make(map[string]struct{})
	for _, w := range wallets {
		positions, err := d.index.FetchPositions(ctx, w)
		if err != nil {
			slog.Warn("positions: index query failed", "wallet", w, "err", err)
			continue
		}
		for _, p := range positions {
			key := p.ConditionID
			if key == "" {
				key = p.TokenID
			}
			if key == "" {
				scan.SkipCount++
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			scan.Positions = append(scan.Positions, p)
		}
	}

	endTime := time.Now().Add(-syntheticAge)
	for _, p := range scan.Positions {
		if !p.QueueCandidate() {
			if p.Size <= 0 {
				scan.SkipCount++
			}
			continue
		}
		if p.Lost() {
			// Resolved worthless: counted, never enqueued.
			scan.LostCount++
			continue
		}
		added := d.queue.Append(domain.PendingRedemption{
			ConditionID:   p.ConditionID,
			TokenID:       p.TokenID,
			NegRisk:       p.NegRisk,
			MarketEndTime: endTime,
			Question:      p.Title,
			Status:        domain.RedemptionWaiting,
		})
		if added {
			scan.Enqueued++
		}
	}

	d.mu.Lock()
	d.lastScan = &scan
	d.mu.Unlock()

	if d.bus != nil {
		d.bus.Log("positions",
			"position scan complete",
			scanSummary(scan),
		)
	}
	slog.Info("positions: scan complete",
		"found", len(scan.Positions),
		"enqueued", scan.Enqueued,
		"lost", scan.LostCount,
	)
	return scan
}

// LastScan returns the most recent scan result, nil before the first run.
func (d *Discovery) LastScan() *domain.PositionScan {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastScan
}

func scanSummary(s domain.PositionScan) string {
	return fmt.Sprintf("found=%d enqueued=%d lost=%d", len(s.Positions), s.Enqueued, s.LostCount)
}
