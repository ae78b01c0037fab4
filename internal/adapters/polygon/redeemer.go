package polygon

// redeemer.go — on-chain side of the redemption engine.
//
// Implements ports.ChainRedeemer: resolution reads on the CTF contract,
// ERC1155 balances, and redeemPositions submission either directly from
// the signer or wrapped in a Safe execTransaction. Verification inspects
// receipt log topics because a successful outer Safe transaction can still
// carry a failed inner call (ExecutionFailure).

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/updown/internal/domain"
)

// ChainClient implements ports.ChainRedeemer.
type ChainClient struct {
	primaryRPC string
	knownProxy string
	privateKey *ecdsa.PrivateKey
	signer     common.Address

	mu           sync.Mutex
	eth          *ethclient.Client
	rpcURL       string
	proxy        string
	proxyChecked bool
	wcol         string
	wcolChecked  bool
}

// NewChainClient derives the signing identity; the provider is connected
// lazily on the first Connect.
func NewChainClient(primaryRPC, privateKeyHex, knownProxy string) (*ChainClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("polygon: invalid private key: %w", err)
	}
	return &ChainClient{
		primaryRPC: primaryRPC,
		knownProxy: knownProxy,
		privateKey: key,
		signer:     crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Connect probes the primary endpoint and the fallback list.
func (c *ChainClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		return nil
	}
	client, url := connectProvider(ctx, c.primaryRPC)
	if client == nil {
		return fmt.Errorf("polygon: cannot dial any RPC endpoint")
	}
	c.eth = client
	c.rpcURL = url
	slog.Info("polygon: provider ready", "url", url)
	return nil
}

// ensureConnected connects lazily for callers that may run before the
// engine's per-tick Connect (position discovery, dashboard reads).
func (c *ChainClient) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	ready := c.eth != nil
	c.mu.Unlock()
	if ready {
		return nil
	}
	return c.Connect(ctx)
}

// SignerAddress returns the EOA derived from the private key.
func (c *ChainClient) SignerAddress() string {
	return c.signer.Hex()
}

// WrappedCollateral reads wcol() from the neg-risk adapter once. Empty
// string means the read failed; the neg-risk rung gets skipped then.
func (c *ChainClient) WrappedCollateral(ctx context.Context) string {
	c.mu.Lock()
	if c.wcolChecked {
		cached := c.wcol
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return ""
	}

	var result string
	data, err := adapterABI.Pack("wcol")
	if err == nil {
		adapter := common.HexToAddress(negRiskAdapterAddress)
		out, callErr := c.eth.CallContract(ctx, ethereum.CallMsg{To: &adapter, Data: data}, nil)
		if callErr == nil {
			if vals, unpackErr := adapterABI.Unpack("wcol", out); unpackErr == nil && len(vals) > 0 {
				result = vals[0].(common.Address).Hex()
			}
		} else {
			slog.Warn("polygon: wcol read failed", "err", callErr)
		}
	}

	c.mu.Lock()
	c.wcol = result
	c.wcolChecked = true
	c.mu.Unlock()
	return result
}

// PayoutDenominator reads the CTF resolution state. Zero ⇒ unresolved.
func (c *ChainClient) PayoutDenominator(ctx context.Context, conditionID string) (*big.Int, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	cond, err := hexToBytes32(conditionID)
	if err != nil {
		return nil, fmt.Errorf("polygon: condition id: %w", err)
	}
	data, err := ctfABI.Pack("payoutDenominator", cond)
	if err != nil {
		return nil, fmt.Errorf("polygon: pack payoutDenominator: %w", err)
	}
	ctf := common.HexToAddress(ctfAddress)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &ctf, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("polygon: payoutDenominator call: %w", err)
	}
	vals, err := ctfABI.Unpack("payoutDenominator", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("polygon: unpack payoutDenominator: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// TokenBalance reads the ERC1155 balance of tokenID under owner.
func (c *ChainClient) TokenBalance(ctx context.Context, owner, tokenID string) (*big.Int, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	tid := new(big.Int)
	if _, ok := tid.SetString(tokenID, 10); !ok {
		if _, ok := tid.SetString(strings.TrimPrefix(tokenID, "0x"), 16); !ok {
			return nil, fmt.Errorf("polygon: invalid token id: %s", tokenID)
		}
	}

	data, err := ctfABI.Pack("balanceOf", common.HexToAddress(owner), tid)
	if err != nil {
		return nil, fmt.Errorf("polygon: pack balanceOf: %w", err)
	}
	ctf := common.HexToAddress(ctfAddress)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &ctf, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("polygon: balanceOf call: %w", err)
	}
	vals, err := ctfABI.Unpack("balanceOf", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("polygon: unpack balanceOf: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// Redeem executes one ladder attempt: encode redeemPositions against the
// attempt's target/collateral and submit, through the proxy when one is
// verified, directly otherwise.
func (c *ChainClient) Redeem(ctx context.Context, attempt domain.RedeemAttempt, conditionID string) domain.RedeemResult {
	if err := c.ensureConnected(ctx); err != nil {
		return domain.RedeemResult{Error: err.Error()}
	}
	cond, err := hexToBytes32(conditionID)
	if err != nil {
		return domain.RedeemResult{Error: "invalid condition id: " + err.Error()}
	}

	indexSets := []*big.Int{big.NewInt(1), big.NewInt(2)}
	callData, err := ctfABI.Pack("redeemPositions",
		common.HexToAddress(attempt.Collateral),
		[32]byte{}, // parentCollectionId = 0x0
		cond,
		indexSets,
	)
	if err != nil {
		return domain.RedeemResult{Error: "pack redeemPositions: " + err.Error()}
	}

	target := common.HexToAddress(attempt.Target)
	proxy := c.ProxyAddress(ctx)

	if proxy != "" {
		return c.redeemViaProxy(ctx, common.HexToAddress(proxy), target, callData)
	}
	return c.redeemDirect(ctx, target, callData)
}

// redeemDirect submits the call from the signer account and relies on
// receipt.status.
func (c *ChainClient) redeemDirect(ctx context.Context, target common.Address, callData []byte) domain.RedeemResult {
	tx, err := c.submitTx(ctx, target, callData)
	if err != nil {
		return domain.RedeemResult{Error: err.Error()}
	}

	receipt, err := c.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		return domain.RedeemResult{Error: "wait receipt: " + err.Error(), TxHash: tx.Hash().Hex()}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.RedeemResult{Error: "transaction reverted", TxHash: tx.Hash().Hex()}
	}
	return domain.RedeemResult{Success: true, TxHash: tx.Hash().Hex()}
}

// redeemViaProxy wraps the call in a Safe execTransaction with a
// pre-validated eth_sign-style signature and verifies the inner result
// from the receipt logs.
func (c *ChainClient) redeemViaProxy(ctx context.Context, proxy, target common.Address, callData []byte) domain.RedeemResult {
	nonce, err := c.safeNonce(ctx, proxy)
	if err != nil {
		return domain.RedeemResult{Error: "safe nonce: " + err.Error()}
	}

	sig, err := c.safeSignature(ctx, proxy, target, callData, nonce)
	if err != nil {
		return domain.RedeemResult{Error: "safe signature: " + err.Error()}
	}

	execData, err := safeABI.Pack("execTransaction",
		target,
		big.NewInt(0),
		callData,
		uint8(0),      // CALL
		big.NewInt(0), // safeTxGas
		big.NewInt(0), // baseGas
		big.NewInt(0), // gasPrice
		common.Address{},
		common.Address{},
		sig,
	)
	if err != nil {
		return domain.RedeemResult{Error: "pack execTransaction: " + err.Error()}
	}

	tx, err := c.submitTx(ctx, proxy, execData)
	if err != nil {
		return domain.RedeemResult{Error: err.Error()}
	}

	receipt, err := c.waitForReceipt(ctx, tx.Hash())
	if err != nil {
		return domain.RedeemResult{Error: "wait receipt: " + err.Error(), TxHash: tx.Hash().Hex()}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.RedeemResult{Error: "transaction reverted", TxHash: tx.Hash().Hex()}
	}

	return verifyProxyReceipt(receipt, proxy, tx.Hash().Hex())
}

// verifyProxyReceipt classifies the inner call from the Safe's own events.
// ExecutionFailure means the outer tx succeeded but the redemption did not
// — that is an attempt failure, not a revert. A stablecoin Transfer log
// corroborates the payout but ExecutionSuccess alone is accepted.
func verifyProxyReceipt(receipt *types.Receipt, proxy common.Address, txHash string) domain.RedeemResult {
	var success, failure, transfer bool
	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 {
			continue
		}
		switch {
		case lg.Address == proxy && lg.Topics[0] == executionSuccessTopic:
			success = true
		case lg.Address == proxy && lg.Topics[0] == executionFailureTopic:
			failure = true
		case lg.Topics[0] == erc20TransferTopic:
			transfer = true
		}
	}

	if failure {
		return domain.RedeemResult{Error: "safe inner call failed (ExecutionFailure)", TxHash: txHash}
	}
	if success {
		if !transfer {
			slog.Debug("polygon: ExecutionSuccess without Transfer log", "tx", txHash)
		}
		return domain.RedeemResult{Success: true, TxHash: txHash}
	}
	return domain.RedeemResult{Error: "no execution event in receipt", TxHash: txHash}
}

// safeSignature builds the pre-validated signer-message signature: sign
// getTransactionHash(...), normalize v to ≥27, then add 4 to mark an
// eth_sign-style signature per the Safe signature encoding.
func (c *ChainClient) safeSignature(ctx context.Context, proxy, target common.Address, callData []byte, nonce *big.Int) ([]byte, error) {
	data, err := safeABI.Pack("getTransactionHash",
		target,
		big.NewInt(0),
		callData,
		uint8(0),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(0),
		common.Address{},
		common.Address{},
		nonce,
	)
	if err != nil {
		return nil, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &proxy, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getTransactionHash: %w", err)
	}
	vals, err := safeABI.Unpack("getTransactionHash", out)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("unpack getTransactionHash: %w", err)
	}
	txHash := vals[0].([32]byte)

	// eth_sign prefixes the hash before signing
	prefixed := crypto.Keccak256(
		[]byte("\x19Ethereum Signed Message:\n32"),
		txHash[:],
	)
	sig, err := crypto.Sign(prefixed, c.privateKey)
	if err != nil {
		return nil, err
	}
	return adjustSafeV(sig), nil
}

// adjustSafeV normalizes the recovery byte to ≥27 and adds 4.
func adjustSafeV(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if out[64] < 27 {
		out[64] += 27
	}
	out[64] += 4
	return out
}

// submitTx signs and broadcasts a legacy transaction with gas price ×2 and
// the fixed redemption gas limit.
func (c *ChainClient) submitTx(ctx context.Context, to common.Address, callData []byte) (*types.Transaction, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.signer)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(2))

	tx := types.NewTransaction(nonce, to, big.NewInt(0), redeemGasLimit, gasPrice, callData)

	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(polygonChainID)), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	slog.Info("polygon: transaction sent", "to", to.Hex(), "tx", signed.Hash().Hex())
	return signed, nil
}

// waitForReceipt polls until confirmed or the context expires.
func (c *ChainClient) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		case <-ticker.C:
			receipt, err := c.eth.TransactionReceipt(waitCtx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

// hexToBytes32 converts a condition id to [32]byte. The id is normalized
// first, so short hex, bare hex and decimal strings are accepted.
func hexToBytes32(s string) ([32]byte, error) {
	normalized, err := domain.NormalizeConditionID(s)
	if err != nil {
		return [32]byte{}, err
	}
	var arr [32]byte
	b := common.FromHex(normalized)
	copy(arr[:], b)
	return arr, nil
}
