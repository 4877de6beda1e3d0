package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// RPCHandler answers a single JSON-RPC method. The returned value is JSON encoded as result.
type RPCHandler func(params []json.RawMessage) (any, error)

// RPCError is answered as a JSON-RPC error object instead of a transport failure.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// RPCNode is a scripted JSON-RPC node served over httptest.
type RPCNode struct {
	Server *httptest.Server

	mu          sync.Mutex
	handlers    map[string]RPCHandler
	calls       map[string]int
	unavailable bool
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcErrorObject `json:"error,omitempty"`
}

type rpcErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRPCNode starts a node that is closed with the test.
func NewRPCNode(t *testing.T) *RPCNode {
	t.Helper()

	n := &RPCNode{
		handlers: make(map[string]RPCHandler),
		calls:    make(map[string]int),
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	t.Cleanup(n.Server.Close)

	return n
}

func (n *RPCNode) URL() string {
	return n.Server.URL
}

// Handle registers h for method, replacing any earlier handler.
func (n *RPCNode) Handle(method string, h RPCHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.handlers[method] = h
}

// HandleResult registers a handler that always returns result.
func (n *RPCNode) HandleResult(method string, result any) {
	n.Handle(method, func([]json.RawMessage) (any, error) { return result, nil })
}

// HandleCall routes eth_call requests to fn.
func (n *RPCNode) HandleCall(fn func(to common.Address, data []byte) ([]byte, error)) {
	n.Handle("eth_call", func(params []json.RawMessage) (any, error) {
		var arg struct {
			To    common.Address `json:"to"`
			Input hexutil.Bytes  `json:"input"`
			Data  hexutil.Bytes  `json:"data"`
		}
		if len(params) == 0 {
			return nil, &RPCError{Code: -32602, Message: "missing call arguments"}
		}
		if err := json.Unmarshal(params[0], &arg); err != nil {
			return nil, &RPCError{Code: -32602, Message: err.Error()}
		}

		data := arg.Input
		if len(data) == 0 {
			data = arg.Data
		}

		out, err := fn(arg.To, data)
		if err != nil {
			return nil, err
		}

		return hexutil.Bytes(out), nil
	})
}

// SetUnavailable makes the node answer every request with HTTP 503.
func (n *RPCNode) SetUnavailable(unavailable bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.unavailable = unavailable
}

// Calls returns how often method was requested.
func (n *RPCNode) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[method]
}

func (n *RPCNode) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	unavailable := n.unavailable
	n.mu.Unlock()

	if unavailable {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var reqs []rpcRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resps := make([]rpcResponse, 0, len(reqs))
		for _, req := range reqs {
			resps = append(resps, n.dispatch(req))
		}
		_ = json.NewEncoder(w).Encode(resps)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_ = json.NewEncoder(w).Encode(n.dispatch(req))
}

func (n *RPCNode) dispatch(req rpcRequest) rpcResponse {
	n.mu.Lock()
	n.calls[req.Method]++
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &rpcErrorObject{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}
		return resp
	}

	result, err := h(req.Params)
	if err != nil {
		code := -32000
		if rpcErr, ok := err.(*RPCError); ok { //nolint:errorlint
			code = rpcErr.Code
		}
		resp.Error = &rpcErrorObject{Code: code, Message: err.Error()}
		return resp
	}

	if result == nil {
		result = json.RawMessage("null")
	}
	resp.Result = result

	return resp
}

// HeaderJSON returns the eth_getBlockByNumber payload of an empty block.
// A nil baseFee yields a pre-London (legacy fee) header.
func HeaderJSON(number uint64, baseFee *big.Int) map[string]any {
	zeroHash := common.Hash{}.Hex()
	h := map[string]any{
		"hash":             common.BigToHash(new(big.Int).SetUint64(number + 1)).Hex(),
		"parentHash":       zeroHash,
		"sha3Uncles":       types.EmptyUncleHash.Hex(),
		"miner":            common.Address{}.Hex(),
		"stateRoot":        zeroHash,
		"transactionsRoot": types.EmptyRootHash.Hex(),
		"receiptsRoot":     types.EmptyRootHash.Hex(),
		"logsBloom":        hexutil.Encode(make([]byte, types.BloomByteLength)),
		"difficulty":       "0x0",
		"number":           hexutil.EncodeUint64(number),
		"gasLimit":         hexutil.EncodeUint64(30_000_000),
		"gasUsed":          "0x0",
		"timestamp":        hexutil.EncodeUint64(1_700_000_000),
		"extraData":        "0x",
		"mixHash":          zeroHash,
		"nonce":            "0x0000000000000000",
		"transactions":     []any{},
		"uncles":           []any{},
	}
	if baseFee != nil {
		h["baseFeePerGas"] = hexutil.EncodeBig(baseFee)
	}

	return h
}

// ReceiptJSON returns the eth_getTransactionReceipt payload of a mined transaction.
func ReceiptJSON(txHash common.Hash, status uint64, blockNumber uint64, logs ...map[string]any) map[string]any {
	if logs == nil {
		logs = []map[string]any{}
	}

	return map[string]any{
		"type":              "0x2",
		"status":            hexutil.EncodeUint64(status),
		"cumulativeGasUsed": hexutil.EncodeUint64(21000),
		"gasUsed":           hexutil.EncodeUint64(21000),
		"effectiveGasPrice": hexutil.EncodeUint64(1_000_000_000),
		"logsBloom":         hexutil.Encode(make([]byte, types.BloomByteLength)),
		"logs":              logs,
		"transactionHash":   txHash.Hex(),
		"transactionIndex":  "0x0",
		"blockHash":         common.BigToHash(new(big.Int).SetUint64(blockNumber + 1)).Hex(),
		"blockNumber":       hexutil.EncodeUint64(blockNumber),
	}
}

// LogJSON returns an eth_getLogs entry.
func LogJSON(contract common.Address, blockNumber uint64, topics []common.Hash, data []byte) map[string]any {
	hexTopics := make([]string, len(topics))
	for i, topic := range topics {
		hexTopics[i] = topic.Hex()
	}

	return map[string]any{
		"address":          contract.Hex(),
		"topics":           hexTopics,
		"data":             hexutil.Encode(data),
		"blockNumber":      hexutil.EncodeUint64(blockNumber),
		"transactionHash":  common.BigToHash(new(big.Int).SetUint64(blockNumber)).Hex(),
		"transactionIndex": "0x0",
		"blockHash":        common.BigToHash(new(big.Int).SetUint64(blockNumber + 1)).Hex(),
		"logIndex":         "0x0",
		"removed":          false,
	}
}

// DecodeRawTransaction decodes the eth_sendRawTransaction parameter.
func DecodeRawTransaction(params []json.RawMessage) (*types.Transaction, error) {
	if len(params) == 0 {
		return nil, &RPCError{Code: -32602, Message: "missing raw transaction"}
	}

	var raw hexutil.Bytes
	if err := json.Unmarshal(params[0], &raw); err != nil {
		return nil, &RPCError{Code: -32602, Message: err.Error()}
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, &RPCError{Code: -32602, Message: err.Error()}
	}

	return tx, nil
}
