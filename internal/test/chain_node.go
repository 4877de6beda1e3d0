package test

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Gwei is 1e9 wei.
var Gwei = big.NewInt(1_000_000_000)

// ChainNode is an RPCNode scripted as a chain that accepts and immediately mines every
// raw transaction. The latest header has the given base fee (nil for a legacy chain)
// and the tip is 1 gwei. The legacy gas price is 5 gwei. Plain value transfers estimate
// 21000 gas and calls with data 50000.
//
// Senders with a balance set by SetBalance are charged value + gas * fee cap per
// transaction, which is rejected like geth does when the balance does not cover it.
type ChainNode struct {
	*RPCNode

	ChainID *big.Int

	mu            sync.Mutex
	sent          []*types.Transaction
	balances      map[common.Address]*big.Int
	receiptStatus uint64
}

func NewChainNode(t *testing.T, chainID int64, baseFee *big.Int) *ChainNode {
	t.Helper()

	n := &ChainNode{
		RPCNode:       NewRPCNode(t),
		ChainID:       big.NewInt(chainID),
		balances:      make(map[common.Address]*big.Int),
		receiptStatus: types.ReceiptStatusSuccessful,
	}

	n.HandleResult("eth_chainId", hexutil.EncodeBig(n.ChainID))
	n.HandleResult("eth_blockNumber", hexutil.EncodeUint64(100))
	n.HandleResult("eth_getBlockByNumber", HeaderJSON(100, baseFee))
	n.HandleResult("eth_maxPriorityFeePerGas", hexutil.EncodeBig(Gwei))
	n.HandleResult("eth_gasPrice", hexutil.EncodeBig(new(big.Int).Mul(Gwei, big.NewInt(5))))
	n.Handle("eth_estimateGas", func(params []json.RawMessage) (any, error) {
		var arg struct {
			Input hexutil.Bytes `json:"input"`
			Data  hexutil.Bytes `json:"data"`
		}
		if len(params) == 0 {
			return nil, &RPCError{Code: -32602, Message: "missing call arguments"}
		}
		if err := json.Unmarshal(params[0], &arg); err != nil {
			return nil, &RPCError{Code: -32602, Message: err.Error()}
		}

		if len(arg.Input) == 0 && len(arg.Data) == 0 {
			return hexutil.EncodeUint64(21000), nil
		}

		return hexutil.EncodeUint64(50000), nil
	})

	n.Handle("eth_getBalance", func(params []json.RawMessage) (any, error) {
		var address common.Address
		if err := json.Unmarshal(params[0], &address); err != nil {
			return nil, &RPCError{Code: -32602, Message: err.Error()}
		}

		n.mu.Lock()
		defer n.mu.Unlock()

		balance, ok := n.balances[address]
		if !ok {
			balance = new(big.Int)
		}

		return hexutil.EncodeBig(balance), nil
	})

	// the pending nonce of every account is the number of accepted transactions
	n.Handle("eth_getTransactionCount", func([]json.RawMessage) (any, error) {
		n.mu.Lock()
		defer n.mu.Unlock()

		return hexutil.EncodeUint64(uint64(len(n.sent))), nil
	})

	n.Handle("eth_sendRawTransaction", func(params []json.RawMessage) (any, error) {
		tx, err := DecodeRawTransaction(params)
		if err != nil {
			return nil, err
		}

		from, err := types.Sender(types.LatestSignerForChainID(n.ChainID), tx)
		if err != nil {
			return nil, &RPCError{Code: -32000, Message: "invalid sender: " + err.Error()}
		}

		n.mu.Lock()
		defer n.mu.Unlock()

		if balance, ok := n.balances[from]; ok {
			cost := tx.Cost()
			if cost.Cmp(balance) > 0 {
				return nil, &RPCError{
					Code:    -32000,
					Message: fmt.Sprintf("insufficient funds for gas * price + value: address %s have %s want %s", from.Hex(), balance, cost),
				}
			}
			n.balances[from] = new(big.Int).Sub(balance, cost)
		}
		n.sent = append(n.sent, tx)

		return tx.Hash().Hex(), nil
	})

	n.Handle("eth_getTransactionReceipt", func(params []json.RawMessage) (any, error) {
		var txHash common.Hash
		if err := json.Unmarshal(params[0], &txHash); err != nil {
			return nil, &RPCError{Code: -32602, Message: err.Error()}
		}

		n.mu.Lock()
		defer n.mu.Unlock()

		return ReceiptJSON(txHash, n.receiptStatus, 101), nil
	})

	return n
}

// SetBalance sets the native balance reported for address.
func (n *ChainNode) SetBalance(address common.Address, balance *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.balances[address] = new(big.Int).Set(balance)
}

// SetBaseFee replaces the base fee of the latest header.
func (n *ChainNode) SetBaseFee(baseFee *big.Int) {
	n.HandleResult("eth_getBlockByNumber", HeaderJSON(100, baseFee))
}

// Balance returns the balance left after the charged transactions.
func (n *ChainNode) Balance(address common.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if b, ok := n.balances[address]; ok {
		return new(big.Int).Set(b)
	}

	return new(big.Int)
}

// SetReceiptStatus sets the status of every receipt, types.ReceiptStatusFailed for reverts.
func (n *ChainNode) SetReceiptStatus(status uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.receiptStatus = status
}

// Transactions returns the accepted transactions in arrival order.
func (n *ChainNode) Transactions() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]*types.Transaction(nil), n.sent...)
}
