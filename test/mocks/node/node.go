package node

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ============================================================================
// Fake JSON-RPC Node
// ============================================================================

// Handler answers a single JSON-RPC method. Returning a non-nil *Error
// produces a JSON-RPC error response.
type Handler func(params []json.RawMessage) (interface{}, *Error)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Node is an in-process Ethereum JSON-RPC endpoint for tests.
type Node struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	rawTxs   [][]byte
}

// New starts a node with no methods registered.
func New() *Node {
	n := &Node{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serve))
	return n
}

// NewDefault starts a node that behaves like a healthy chain: block 16,
// pending nonce 5, a 1 gwei gas price, accepting every raw transaction
// and returning a successful receipt on the first lookup.
func NewDefault() *Node {
	n := New()
	n.SetBlockNumber(16)
	n.SetNonce(5)
	n.SetGasPrice(big.NewInt(1000000000))
	n.AcceptTransactions()
	n.SetReceiptStatus(1)
	return n
}

// URL returns the HTTP endpoint.
func (n *Node) URL() string {
	return n.server.URL
}

// Close stops the server. Subsequent calls fail at the transport level.
func (n *Node) Close() {
	n.server.Close()
}

// Handle registers or replaces the handler for method.
func (n *Node) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

// Calls returns how many times method was invoked.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// RawTransactions returns every payload passed to eth_sendRawTransaction.
func (n *Node) RawTransactions() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([][]byte, len(n.rawTxs))
	copy(out, n.rawTxs)
	return out
}

// SetBlockNumber answers eth_blockNumber with a fixed height.
func (n *Node) SetBlockNumber(height uint64) {
	n.Handle("eth_blockNumber", Result(hexutil.EncodeUint64(height)))
}

// SetNonce answers eth_getTransactionCount with a fixed nonce.
func (n *Node) SetNonce(nonce uint64) {
	n.Handle("eth_getTransactionCount", Result(hexutil.EncodeUint64(nonce)))
}

// SetGasPrice answers eth_gasPrice with a fixed price.
func (n *Node) SetGasPrice(price *big.Int) {
	n.Handle("eth_gasPrice", Result(hexutil.EncodeBig(price)))
}

// AcceptTransactions records raw transactions and returns their hash.
func (n *Node) AcceptTransactions() {
	n.Handle("eth_sendRawTransaction", func(params []json.RawMessage) (interface{}, *Error) {
		var encoded string
		if len(params) == 0 || json.Unmarshal(params[0], &encoded) != nil {
			return nil, &Error{Code: -32602, Message: "invalid params"}
		}
		raw, err := hexutil.Decode(encoded)
		if err != nil {
			return nil, &Error{Code: -32602, Message: err.Error()}
		}
		n.mu.Lock()
		n.rawTxs = append(n.rawTxs, raw)
		n.mu.Unlock()
		return crypto.Keccak256Hash(raw).Hex(), nil
	})
}

// RejectTransactions answers eth_sendRawTransaction with a JSON-RPC error.
func (n *Node) RejectTransactions(code int, message string) {
	n.Handle("eth_sendRawTransaction", Fail(code, message))
}

// SetReceiptStatus returns a mined receipt with the given status for any hash.
func (n *Node) SetReceiptStatus(status uint64) {
	n.Handle("eth_getTransactionReceipt", func(params []json.RawMessage) (interface{}, *Error) {
		var hash string
		if len(params) > 0 {
			_ = json.Unmarshal(params[0], &hash)
		}
		return Receipt(common.HexToHash(hash), status, 17, 52000), nil
	})
}

// SetReceiptPending makes every receipt lookup return null.
func (n *Node) SetReceiptPending() {
	n.Handle("eth_getTransactionReceipt", Result(nil))
}

// Receipt builds a JSON receipt object.
func Receipt(hash common.Hash, status, blockNumber, gasUsed uint64) map[string]interface{} {
	return map[string]interface{}{
		"transactionHash": hash.Hex(),
		"status":          hexutil.EncodeUint64(status),
		"blockNumber":     hexutil.EncodeUint64(blockNumber),
		"gasUsed":         hexutil.EncodeUint64(gasUsed),
	}
}

// Result returns a handler answering with a fixed result.
func Result(v interface{}) Handler {
	return func([]json.RawMessage) (interface{}, *Error) {
		return v, nil
	}
}

// Fail returns a handler answering with a JSON-RPC error.
func Fail(code int, message string) Handler {
	return func([]json.RawMessage) (interface{}, *Error) {
		return nil, &Error{Code: code, Message: message}
	}
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := response{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &Error{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}
	} else {
		result, rpcErr := h(req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else if result == nil {
			resp.Result = json.RawMessage("null")
		} else {
			resp.Result = result
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
