package polygon

// abi.go — contract ABIs and event topics used by the redemption path.
// Parsed once at init, same discipline as the order-side ABIs.

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract — conditional tokens (ERC1155) and redeemPositions
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// NegRisk adapter — redeems against wrapped collateral
	negRiskAdapterAddress = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

	// Polymarket proxy-wallet factory
	proxyFactoryAddress = "0xaacFeEa03eb1561C4e67d661e40682Bd20E3541b"

	// Gas envelope for redemption transactions, direct or proxied
	redeemGasLimit = uint64(500_000)
)

// Contract ABIs
var (
	ctfABI     abi.ABI
	adapterABI abi.ABI
	safeABI    abi.ABI
	factoryABI abi.ABI
)

// Receipt log topics checked during verification.
var (
	executionSuccessTopic = crypto.Keccak256Hash([]byte("ExecutionSuccess(bytes32,uint256)"))
	executionFailureTopic = crypto.Keccak256Hash([]byte("ExecutionFailure(bytes32,uint256)"))
	erc20TransferTopic    = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

func init() {
	var err error

	ctfABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "redeemPositions",
			"type": "function",
			"inputs": [
				{"name": "collateralToken", "type": "address"},
				{"name": "parentCollectionId", "type": "bytes32"},
				{"name": "conditionId", "type": "bytes32"},
				{"name": "indexSets", "type": "uint256[]"}
			],
			"outputs": []
		},
		{
			"name": "payoutDenominator",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "", "type": "bytes32"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "account", "type": "address"},
				{"name": "id", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("ctf abi parse: " + err.Error())
	}

	adapterABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "wcol",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "address"}]
		}
	]`))
	if err != nil {
		panic("adapter abi parse: " + err.Error())
	}

	safeABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "getOwners",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "address[]"}]
		},
		{
			"name": "getThreshold",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "nonce",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "getTransactionHash",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "data", "type": "bytes"},
				{"name": "operation", "type": "uint8"},
				{"name": "safeTxGas", "type": "uint256"},
				{"name": "baseGas", "type": "uint256"},
				{"name": "gasPrice", "type": "uint256"},
				{"name": "gasToken", "type": "address"},
				{"name": "refundReceiver", "type": "address"},
				{"name": "_nonce", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bytes32"}]
		},
		{
			"name": "execTransaction",
			"type": "function",
			"inputs": [
				{"name": "to", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "data", "type": "bytes"},
				{"name": "operation", "type": "uint8"},
				{"name": "safeTxGas", "type": "uint256"},
				{"name": "baseGas", "type": "uint256"},
				{"name": "gasPrice", "type": "uint256"},
				{"name": "gasToken", "type": "address"},
				{"name": "refundReceiver", "type": "address"},
				{"name": "signatures", "type": "bytes"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("safe abi parse: " + err.Error())
	}

	factoryABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "computeProxyAddress",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "owner", "type": "address"}],
			"outputs": [{"name": "", "type": "address"}]
		}
	]`))
	if err != nil {
		panic("factory abi parse: " + err.Error())
	}
}
