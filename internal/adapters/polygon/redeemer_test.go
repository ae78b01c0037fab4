package polygon

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	proxyAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func receiptWith(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, Logs: logs}
}

func logFrom(addr common.Address, topic common.Hash) *types.Log {
	return &types.Log{Address: addr, Topics: []common.Hash{topic}}
}

func TestVerifyProxyReceipt_Success(t *testing.T) {
	r := verifyProxyReceipt(receiptWith(
		logFrom(proxyAddr, executionSuccessTopic),
		logFrom(otherAddr, erc20TransferTopic),
	), proxyAddr, "0xtx")

	assert.True(t, r.Success)
	assert.Equal(t, "0xtx", r.TxHash)
}

func TestVerifyProxyReceipt_SuccessWithoutTransferStillAccepted(t *testing.T) {
	r := verifyProxyReceipt(receiptWith(
		logFrom(proxyAddr, executionSuccessTopic),
	), proxyAddr, "0xtx")
	assert.True(t, r.Success)
}

func TestVerifyProxyReceipt_InnerFailure(t *testing.T) {
	r := verifyProxyReceipt(receiptWith(
		logFrom(proxyAddr, executionFailureTopic),
	), proxyAddr, "0xtx")

	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "ExecutionFailure")
}

func TestVerifyProxyReceipt_EventsFromOtherContractsIgnored(t *testing.T) {
	// success topic emitted by a different address does not count
	r := verifyProxyReceipt(receiptWith(
		logFrom(otherAddr, executionSuccessTopic),
	), proxyAddr, "0xtx")

	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "no execution event")
}

func TestAdjustSafeV(t *testing.T) {
	sig := make([]byte, 65)
	sig[64] = 0
	assert.Equal(t, byte(31), adjustSafeV(sig)[64]) // 0 → 27 → +4

	sig[64] = 1
	assert.Equal(t, byte(32), adjustSafeV(sig)[64])

	sig[64] = 28 // already normalized
	assert.Equal(t, byte(32), adjustSafeV(sig)[64])

	// input untouched
	assert.Equal(t, byte(28), sig[64])
}

func TestHexToBytes32(t *testing.T) {
	arr, err := hexToBytes32("0xff")
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), arr[31])
	assert.Equal(t, byte(0), arr[0])

	_, err = hexToBytes32("zz")
	assert.Error(t, err)
}

func TestNewChainClient_DerivesSigner(t *testing.T) {
	c, err := NewChainClient("http://localhost:1", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80", "")
	require.NoError(t, err)
	// hardhat account #0
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", c.SignerAddress())
}

func TestNewChainClient_RejectsBadKey(t *testing.T) {
	_, err := NewChainClient("http://localhost:1", "not-a-key", "")
	assert.Error(t, err)
}
