package chain_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/batch-sender/internal/test"
	"github/chapool/batch-sender/internal/wallet/chain"
)

var (
	testToken        = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testHolder       = common.HexToAddress("0x000000000000000000000000000000000000dead")
	testTxHash       = common.HexToHash("0x1234")
	testClientConfig = chain.ClientConfig{Timeout: 5 * time.Second, ReceiptPollInterval: 10 * time.Millisecond}
)

func newClient(t *testing.T, urls ...string) *chain.Client {
	t.Helper()

	cfg := testClientConfig
	cfg.URLs = urls
	client, err := chain.NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := chain.NewClient(chain.ClientConfig{})
	require.Error(t, err)
}

func TestClientBasics(t *testing.T) {
	node := test.NewRPCNode(t)
	node.HandleResult("eth_chainId", "0x61")
	node.HandleResult("eth_blockNumber", "0x2710")
	node.HandleResult("eth_getBalance", hexutil.EncodeBig(big.NewInt(1_000_000)))
	node.HandleResult("eth_getTransactionCount", "0x7")
	node.HandleResult("eth_estimateGas", "0x5208")

	client := newClient(t, node.URL())
	ctx := context.Background()

	chainID, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(97), chainID.Int64())

	number, err := client.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), number)

	balance, err := client.BalanceAt(ctx, testHolder)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance.Int64())

	nonce, err := client.PendingNonceAt(ctx, testHolder)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)

	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: testHolder, To: &testToken})
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), gas)
}

func TestClientTokenCalls(t *testing.T) {
	node := test.NewRPCNode(t)
	node.HandleCall(func(to common.Address, data []byte) ([]byte, error) {
		assert.Equal(t, testToken, to)

		switch common.Bytes2Hex(data[:4]) {
		case "313ce567": // decimals()
			return common.LeftPadBytes([]byte{6}, 32), nil
		case "70a08231": // balanceOf(address)
			assert.Equal(t, testHolder, common.BytesToAddress(data[4:36]))
			return common.BigToHash(big.NewInt(123_456)).Bytes(), nil
		case "6352211e": // ownerOf(uint256)
			return common.BytesToHash(testHolder.Bytes()).Bytes(), nil
		case "2f745c59": // tokenOfOwnerByIndex(address,uint256)
			return common.BigToHash(big.NewInt(99)).Bytes(), nil
		}

		return nil, &test.RPCError{Code: 3, Message: "execution reverted"}
	})

	client := newClient(t, node.URL())
	ctx := context.Background()

	decimals, err := client.TokenDecimals(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	balance, err := client.TokenBalance(ctx, testToken, testHolder)
	require.NoError(t, err)
	assert.Equal(t, int64(123_456), balance.Int64())

	nftBalance, err := client.NFTBalanceOf(ctx, testToken, testHolder)
	require.NoError(t, err)
	assert.Equal(t, int64(123_456), nftBalance.Int64())

	owner, err := client.OwnerOf(ctx, testToken, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, testHolder, owner)

	tokenID, err := client.TokenOfOwnerByIndex(ctx, testToken, testHolder, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, int64(99), tokenID.Int64())

	_, err = client.TokenSymbol(ctx, testToken)
	require.Error(t, err)
}

func TestClientEmptyCallResult(t *testing.T) {
	node := test.NewRPCNode(t)
	node.HandleCall(func(common.Address, []byte) ([]byte, error) {
		return []byte{}, nil
	})

	client := newClient(t, node.URL())

	_, err := client.TokenDecimals(context.Background(), testToken)
	require.Error(t, err)
}

func TestClientFeeQuoteDynamic(t *testing.T) {
	node := test.NewRPCNode(t)
	node.HandleResult("eth_getBlockByNumber", test.HeaderJSON(100, big.NewInt(10_000_000_000)))
	node.HandleResult("eth_maxPriorityFeePerGas", hexutil.EncodeBig(big.NewInt(1_000_000_000)))

	client := newClient(t, node.URL())

	quote, err := client.FeeQuote(context.Background())
	require.NoError(t, err)

	assert.True(t, quote.IsDynamic())
	assert.Equal(t, int64(10_000_000_000), quote.BaseFee.Int64())
	assert.Equal(t, int64(1_000_000_000), quote.GasTipCap.Int64())
	assert.Equal(t, int64(21_000_000_000), quote.GasFeeCap.Int64())
	assert.Equal(t, int64(21_000_000_000), quote.CostPerGas().Int64())
	assert.Equal(t, 0, node.Calls("eth_gasPrice"))
}

func TestClientFeeQuoteLegacy(t *testing.T) {
	node := test.NewRPCNode(t)
	node.HandleResult("eth_getBlockByNumber", test.HeaderJSON(100, nil))
	node.HandleResult("eth_gasPrice", hexutil.EncodeBig(big.NewInt(5_000_000_000)))

	client := newClient(t, node.URL())

	quote, err := client.FeeQuote(context.Background())
	require.NoError(t, err)

	assert.False(t, quote.IsDynamic())
	assert.Equal(t, int64(5_000_000_000), quote.CostPerGas().Int64())
	assert.Equal(t, 0, node.Calls("eth_maxPriorityFeePerGas"))
}

func TestClientFailover(t *testing.T) {
	down := test.NewRPCNode(t)
	down.SetUnavailable(true)

	up := test.NewRPCNode(t)
	up.HandleResult("eth_blockNumber", "0x10")

	client := newClient(t, down.URL(), up.URL())

	number, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), number)

	// the healthy node stays current
	_, err = client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls("eth_blockNumber"))
}

func TestClientAllNodesDown(t *testing.T) {
	a := test.NewRPCNode(t)
	a.SetUnavailable(true)
	b := test.NewRPCNode(t)
	b.SetUnavailable(true)

	client := newClient(t, a.URL(), b.URL())

	_, err := client.BlockNumber(context.Background())
	require.Error(t, err)
}

func TestClientRPCErrorIsFinal(t *testing.T) {
	first := test.NewRPCNode(t)
	first.Handle("eth_estimateGas", func([]json.RawMessage) (any, error) {
		return nil, &test.RPCError{Code: 3, Message: "execution reverted"}
	})

	second := test.NewRPCNode(t)
	second.HandleResult("eth_estimateGas", "0x5208")

	client := newClient(t, first.URL(), second.URL())

	_, err := client.EstimateGas(context.Background(), ethereum.CallMsg{To: &testToken})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
	assert.Equal(t, 0, second.Calls("eth_estimateGas"))
}

func TestClientFilterLogs(t *testing.T) {
	owner := common.BytesToHash(testHolder.Bytes())
	node := test.NewRPCNode(t)
	node.HandleResult("eth_getLogs", []map[string]any{
		test.LogJSON(testToken, 50, []common.Hash{chain.TransferEventTopic, {}, owner, common.BigToHash(big.NewInt(3))}, nil),
	})

	client := newClient(t, node.URL())

	logs, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{
		FromBlock: big.NewInt(0),
		ToBlock:   big.NewInt(100),
		Addresses: []common.Address{testToken},
		Topics:    [][]common.Hash{{chain.TransferEventTopic}, nil, {owner}},
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].Topics, 4)
	assert.Equal(t, uint64(50), logs[0].BlockNumber)
}

func TestClientWaitForReceipt(t *testing.T) {
	node := test.NewRPCNode(t)

	polls := 0
	node.Handle("eth_getTransactionReceipt", func([]json.RawMessage) (any, error) {
		polls++
		if polls < 3 {
			return nil, nil
		}
		return test.ReceiptJSON(testTxHash, 1, 77), nil
	})

	client := newClient(t, node.URL())

	receipt, err := client.WaitForReceipt(context.Background(), testTxHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, int64(77), receipt.BlockNumber.Int64())
	assert.Equal(t, 3, node.Calls("eth_getTransactionReceipt"))
}

func TestClientWaitForReceiptTimeout(t *testing.T) {
	node := test.NewRPCNode(t)
	node.Handle("eth_getTransactionReceipt", func([]json.RawMessage) (any, error) {
		return nil, nil
	})

	client := newClient(t, node.URL())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.WaitForReceipt(ctx, testTxHash)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
