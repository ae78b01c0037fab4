package ports

import (
	"context"

	"github.com/alejandrodnm/updown/internal/domain"
)

// OrderExecutor signs and submits orders against the CLOB.
type OrderExecutor interface {
	// Execute places a buy order for the side chosen by the decision.
	// It never returns an error: failures are reported inside the trade
	// record (Result == failed, Error set) so the activity log keeps the
	// venue's reject message verbatim.
	Execute(ctx context.Context, decision domain.Decision, snapshot domain.MarketSnapshot, sizeUSDC float64) domain.TradeRecord
}
