// Package chainclient is a thin JSON-RPC gateway to an Ethereum-compatible node.
//
// Every failure is returned as a *ChainError so callers can tell an unreachable
// node (KindUnavailable) from a node that rejected the call (KindRPC).
package chainclient

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/questlabs/rewards-go/mechanisms/evm"
)

// DefaultTimeout bounds a single node call.
const DefaultTimeout = 10 * time.Second

// Client issues the handful of node calls the disbursement flow needs.
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

type options struct {
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHTTPClient overrides the HTTP client used for the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// Dial connects to the node at url. HTTP endpoints are dialed lazily, so a
// nil error does not imply the node is reachable.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, ErrNotConfigured
	}
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	var clientOpts []rpc.ClientOption
	if o.httpClient != nil {
		clientOpts = append(clientOpts, rpc.WithHTTPClient(o.httpClient))
	}
	c, err := rpc.DialOptions(ctx, url, clientOpts...)
	if err != nil {
		return nil, classify("dial", err)
	}
	return &Client{rpc: c, timeout: o.timeout}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return classify(method, c.rpc.CallContext(ctx, result, method, args...))
}

// BlockNumber returns the current chain height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, &result, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// PendingNonceAt returns the next nonce for account, counting pending transactions.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, &result, "eth_getTransactionCount", account, "pending"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// GasPrice returns the node's quoted gas price in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := c.call(ctx, &result, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return (*big.Int)(&result), nil
}

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := c.call(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, err
	}
	if hash == (common.Hash{}) {
		hash = tx.Hash()
	}
	return hash, nil
}

type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
}

// TransactionReceipt looks up the receipt for hash. ErrReceiptNotFound is
// returned while the transaction is unmined.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*evm.TransactionReceipt, error) {
	var r *rpcReceipt
	if err := c.call(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrReceiptNotFound
	}
	return &evm.TransactionReceipt{
		Status:      uint64(r.Status),
		BlockNumber: uint64(r.BlockNumber),
		GasUsed:     uint64(r.GasUsed),
		TxHash:      r.TransactionHash,
	}, nil
}
