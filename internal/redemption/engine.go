package redemption

// engine.go — asynchronous reconciler for resolved positions.
//
// Runs once per coordinator tick, re-entrancy short-circuited by a boolean
// latch. For each waiting entry past its grace period: read resolution
// state, read the ERC1155 balance, then walk the attempt ladder — neg-risk
// adapter first (skipped when wcol is unknown), plain CTF second. The
// ladder exits on the first verified success. Transient RPC faults leave
// the entry waiting for the next tick; nothing here is fatal.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

// resolutionGrace is how long after market close the first attempt waits.
const resolutionGrace = 2 * time.Minute

// Engine walks the queue and redeems resolved positions.
type Engine struct {
	chain ports.ChainRedeemer
	queue *Queue
	bus   *activity.Bus
	now   func() time.Time

	checking atomic.Bool
}

// NewEngine wires the engine. bus may be nil in tests.
func NewEngine(chain ports.ChainRedeemer, queue *Queue, bus *activity.Bus) *Engine {
	return &Engine{chain: chain, queue: queue, bus: bus, now: time.Now}
}

// CheckAndRedeem runs one reconciliation pass. Concurrent invocations
// return immediately.
func (e *Engine) CheckAndRedeem(ctx context.Context) {
	if !e.checking.CompareAndSwap(false, true) {
		return
	}
	defer e.checking.Store(false)

	candidates := e.candidates()
	if len(candidates) == 0 {
		return
	}

	if err := e.chain.Connect(ctx); err != nil {
		slog.Warn("redemption: no provider, deferring", "err", err)
		return
	}

	wcol := e.chain.WrappedCollateral(ctx)
	wallet := e.chain.ProxyAddress(ctx)
	if wallet == "" {
		wallet = e.chain.SignerAddress()
	}

	for _, entry := range candidates {
		e.process(ctx, entry, wallet, wcol)
	}
}

// candidates selects waiting entries whose market closed at least the
// grace period ago.
func (e *Engine) candidates() []domain.PendingRedemption {
	cutoff := e.now().Add(-resolutionGrace)
	var out []domain.PendingRedemption
	for _, p := range e.queue.Pending() {
		if p.Status == domain.RedemptionWaiting && !p.MarketEndTime.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) process(ctx context.Context, entry domain.PendingRedemption, wallet, wcol string) {
	key := entry.Key()

	conditionID, err := domain.NormalizeConditionID(entry.ConditionID)
	if err != nil {
		e.terminate(key, domain.RedemptionError, "", "invalid condition id: "+err.Error())
		return
	}

	denom, err := e.chain.PayoutDenominator(ctx, conditionID)
	if err != nil {
		// Transient RPC fault: stay waiting, retry next tick.
		slog.Debug("redemption: payoutDenominator failed", "condition", short(conditionID), "err", err)
		return
	}
	if denom == nil || denom.Sign() == 0 {
		return // unresolved
	}

	if entry.TokenID != "" {
		balance, err := e.chain.TokenBalance(ctx, wallet, entry.TokenID)
		if err != nil {
			slog.Debug("redemption: balance read failed", "condition", short(conditionID), "err", err)
			return
		}
		if balance.Sign() == 0 {
			e.terminate(key, domain.RedemptionNoPayout, "", "")
			e.event("position lost (zero balance)", short(conditionID))
			return
		}
	}

	e.queue.SetStatus(key, func(p *domain.PendingRedemption) {
		p.Status = domain.RedemptionActive
	})

	result, label := e.runLadder(ctx, conditionID, entry, wcol)
	if result.Success {
		e.terminate(key, domain.RedemptionRedeemed, result.TxHash, "")
		e.event(fmt.Sprintf("redeemed via %s", label), result.TxHash)
		return
	}

	status := domain.RedemptionError
	if isNoPayoutError(result.Error) {
		status = domain.RedemptionNoPayout
	}
	e.terminate(key, status, result.TxHash, result.Error)
	e.event("redemption failed: "+result.Error, short(conditionID))
}

// runLadder tries each applicable attempt in order and stops at the first
// verified success. Only the failing attempts' errors are kept.
func (e *Engine) runLadder(ctx context.Context, conditionID string, entry domain.PendingRedemption, wcol string) (domain.RedeemResult, string) {
	ladder := buildLadder(entry.NegRisk, wcol)
	if len(ladder) == 0 {
		return domain.RedeemResult{Error: "no applicable redemption contract"}, ""
	}

	var last domain.RedeemResult
	for _, attempt := range ladder {
		slog.Info("redemption: attempting",
			"contract", attempt.Label,
			"condition", short(conditionID),
		)
		last = e.chain.Redeem(ctx, attempt, conditionID)
		if last.Success {
			return last, attempt.Label
		}
		slog.Warn("redemption: attempt failed",
			"contract", attempt.Label,
			"err", last.Error,
		)
	}
	return last, ""
}

// buildLadder returns the attempts for an entry: the neg-risk adapter rung
// only when the market is neg-risk and the wrapped collateral is known,
// then always the plain CTF contract.
func buildLadder(negRisk bool, wcol string) []domain.RedeemAttempt {
	var ladder []domain.RedeemAttempt
	if negRisk && wcol != "" {
		ladder = append(ladder, domain.RedeemAttempt{
			Label:      "NegRiskAdapter",
			Target:     negRiskAdapterAddr,
			Collateral: wcol,
		})
	}
	ladder = append(ladder, domain.RedeemAttempt{
		Label:      "CTF",
		Target:     ctfAddr,
		Collateral: usdcEAddr,
	})
	return ladder
}

// Contract addresses, mirrored here so the ladder can be built without a
// chain round-trip. Kept in sync with the polygon adapter.
const (
	ctfAddr            = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
	negRiskAdapterAddr = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"
	usdcEAddr          = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
)

func (e *Engine) terminate(key string, status domain.RedemptionStatus, txHash, errMsg string) {
	now := e.now().UTC()
	e.queue.SetStatus(key, func(p *domain.PendingRedemption) {
		p.Status = status
		p.Error = errMsg
		if txHash != "" {
			p.TxHash = txHash
		}
		if status == domain.RedemptionRedeemed {
			p.RedeemedAt = &now
		}
	})
}

func (e *Engine) event(msg, detail string) {
	if e.bus != nil {
		e.bus.Log("redemption", msg, detail)
	}
}

// isNoPayoutError classifies ladder-exhaustion errors that actually mean
// the position pays nothing.
func isNoPayoutError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "payout is zero") || strings.Contains(lower, "result is empty")
}

func short(conditionID string) string {
	if len(conditionID) > 12 {
		return conditionID[:12] + "..."
	}
	return conditionID
}
