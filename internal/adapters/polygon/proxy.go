package polygon

// proxy.go — Safe proxy-wallet discovery.
//
// The factory exposes the deterministic proxy address for an owner; if code
// is deployed there and the signer is an owner of a threshold-1 Safe, that
// proxy routes our redemptions. A configured known-good address is probed
// as fallback. A verified result is cached for the process lifetime.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ProxyAddress returns the verified proxy wallet, or "" when none exists.
func (c *ChainClient) ProxyAddress(ctx context.Context) string {
	c.mu.Lock()
	if c.proxyChecked {
		cached := c.proxy
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		// Not cached: retried once a provider is reachable.
		return ""
	}

	addr := c.discoverProxy(ctx)

	c.mu.Lock()
	c.proxy = addr
	c.proxyChecked = true
	c.mu.Unlock()
	return addr
}

func (c *ChainClient) discoverProxy(ctx context.Context) string {
	computed, err := c.computeProxyAddress(ctx, c.signer)
	if err != nil {
		slog.Warn("proxy: factory query failed", "err", err)
	} else if c.verifyProxy(ctx, computed) {
		slog.Info("proxy: using factory-derived wallet", "address", computed.Hex())
		return computed.Hex()
	}

	if c.knownProxy != "" {
		known := common.HexToAddress(c.knownProxy)
		if c.hasCode(ctx, known) {
			slog.Info("proxy: using configured wallet", "address", known.Hex())
			return known.Hex()
		}
		slog.Warn("proxy: configured wallet has no code", "address", known.Hex())
	}

	return ""
}

// verifyProxy accepts a deployed Safe whose owners include the signer with
// threshold 1 — anything else cannot be co-signed by a single key.
func (c *ChainClient) verifyProxy(ctx context.Context, proxy common.Address) bool {
	if !c.hasCode(ctx, proxy) {
		return false
	}

	owners, err := c.safeOwners(ctx, proxy)
	if err != nil {
		slog.Warn("proxy: getOwners failed", "err", err)
		return false
	}
	isOwner := false
	for _, o := range owners {
		if o == c.signer {
			isOwner = true
			break
		}
	}
	if !isOwner {
		slog.Warn("proxy: signer is not an owner", "proxy", proxy.Hex())
		return false
	}

	threshold, err := c.safeThreshold(ctx, proxy)
	if err != nil || threshold == nil || threshold.Cmp(big.NewInt(1)) != 0 {
		slog.Warn("proxy: threshold is not 1", "proxy", proxy.Hex())
		return false
	}
	return true
}

func (c *ChainClient) hasCode(ctx context.Context, addr common.Address) bool {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	return err == nil && len(code) > 0
}

func (c *ChainClient) computeProxyAddress(ctx context.Context, owner common.Address) (common.Address, error) {
	data, err := factoryABI.Pack("computeProxyAddress", owner)
	if err != nil {
		return common.Address{}, err
	}
	factory := common.HexToAddress(proxyFactoryAddress)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	vals, err := factoryABI.Unpack("computeProxyAddress", out)
	if err != nil || len(vals) == 0 {
		return common.Address{}, fmt.Errorf("unpack computeProxyAddress: %w", err)
	}
	return vals[0].(common.Address), nil
}

func (c *ChainClient) safeOwners(ctx context.Context, proxy common.Address) ([]common.Address, error) {
	data, err := safeABI.Pack("getOwners")
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &proxy, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := safeABI.Unpack("getOwners", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("unpack getOwners: %w", err)
	}
	return vals[0].([]common.Address), nil
}

func (c *ChainClient) safeThreshold(ctx context.Context, proxy common.Address) (*big.Int, error) {
	data, err := safeABI.Pack("getThreshold")
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &proxy, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := safeABI.Unpack("getThreshold", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("unpack getThreshold: %w", err)
	}
	return vals[0].(*big.Int), nil
}

func (c *ChainClient) safeNonce(ctx context.Context, proxy common.Address) (*big.Int, error) {
	data, err := safeABI.Pack("nonce")
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &proxy, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	vals, err := safeABI.Unpack("nonce", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("unpack nonce: %w", err)
	}
	return vals[0].(*big.Int), nil
}
