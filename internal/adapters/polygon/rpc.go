package polygon

// rpc.go — RPC provider selection. The configured endpoint is probed with
// a trivial network call; on failure each fallback is tried in order; when
// everything is dead the primary is kept anyway and per-entry reads fail
// softly on the next tick.

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// fallbackRPCs are public Polygon endpoints tried after the primary.
var fallbackRPCs = []string{
	"https://polygon-rpc.com",
	"https://rpc.ankr.com/polygon",
	"https://polygon.llamarpc.com",
	"https://polygon-bor-rpc.publicnode.com",
}

const probeTimeout = 5 * time.Second

// connectProvider returns the first endpoint that answers a ChainID query.
func connectProvider(ctx context.Context, primary string) (*ethclient.Client, string) {
	urls := append([]string{primary}, fallbackRPCs...)

	for _, url := range urls {
		if url == "" {
			continue
		}
		client, err := ethclient.Dial(url)
		if err != nil {
			slog.Debug("rpc: dial failed", "url", url, "err", err)
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err = client.ChainID(probeCtx)
		cancel()
		if err != nil {
			slog.Debug("rpc: probe failed", "url", url, "err", err)
			client.Close()
			continue
		}

		slog.Debug("rpc: connected", "url", url)
		return client, url
	}

	// Nothing answered: keep the primary so callers can keep retrying.
	slog.Warn("rpc: no endpoint answered, keeping primary", "url", primary)
	client, err := ethclient.Dial(primary)
	if err != nil {
		return nil, primary
	}
	return client, primary
}
