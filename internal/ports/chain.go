package ports

import (
	"context"
	"math/big"

	"github.com/alejandrodnm/updown/internal/domain"
)

// ChainRedeemer is the on-chain side of the redemption engine: RPC
// connectivity, proxy discovery, resolution reads and the actual
// redeemPositions submission (direct or through the Safe proxy).
type ChainRedeemer interface {
	// Connect probes the configured RPC endpoint and the fallback list,
	// keeping the first that answers. Falls back to the primary even if
	// dead — callers tolerate read errors per entry.
	Connect(ctx context.Context) error

	// SignerAddress returns the EOA derived from the private key.
	SignerAddress() string

	// ProxyAddress returns the verified Safe proxy wallet address, or ""
	// when the signer has none. The result is cached for process lifetime.
	ProxyAddress(ctx context.Context) string

	// WrappedCollateral reads wcol() from the neg-risk adapter. Returns ""
	// when the read fails; the neg-risk ladder rung is skipped then.
	WrappedCollateral(ctx context.Context) string

	// PayoutDenominator reads the CTF resolution state for a condition.
	// Zero means unresolved.
	PayoutDenominator(ctx context.Context, conditionID string) (*big.Int, error)

	// TokenBalance reads the ERC-1155 balance of tokenID under owner.
	TokenBalance(ctx context.Context, owner, tokenID string) (*big.Int, error)

	// Redeem executes one ladder attempt and verifies it via the receipt.
	Redeem(ctx context.Context, attempt domain.RedeemAttempt, conditionID string) domain.RedeemResult
}

// PositionsProvider queries the off-chain positions index.
type PositionsProvider interface {
	// FetchPositions returns all positions held by the wallet address.
	FetchPositions(ctx context.Context, wallet string) ([]domain.Position, error)
}
