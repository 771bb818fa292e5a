package chainclient

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlabs/rewards-go/test/mocks/node"
)

func dial(t *testing.T, n *node.Node) *Client {
	t.Helper()
	c, err := Dial(context.Background(), n.URL(), WithTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func signedTx(t *testing.T) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := types.NewTx(&types.LegacyTx{Nonce: 5, GasPrice: big.NewInt(1), Gas: 21000, To: &to, Value: big.NewInt(0)})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(84532)), key)
	require.NoError(t, err)
	return signed
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestChainParams(t *testing.T) {
	n := node.NewDefault()
	defer n.Close()
	c := dial(t, n)
	ctx := context.Background()

	height, err := c.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), height)

	nonce, err := c.PendingNonceAt(ctx, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), nonce)

	price, err := c.GasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000000000), price)
}

func TestPendingNonceUsesPendingTag(t *testing.T) {
	n := node.New()
	defer n.Close()

	var tag string
	n.Handle("eth_getTransactionCount", func(params []json.RawMessage) (interface{}, *node.Error) {
		require.Len(t, params, 2)
		_ = json.Unmarshal(params[1], &tag)
		return "0x9", nil
	})

	nonce, err := dial(t, n).PendingNonceAt(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), nonce)
	assert.Equal(t, "pending", tag)
}

func TestSendRawTransaction(t *testing.T) {
	n := node.NewDefault()
	defer n.Close()

	tx := signedTx(t)
	hash, err := dial(t, n).SendRawTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), hash)
	require.Len(t, n.RawTransactions(), 1)
}

func TestSendRawTransactionAlreadyKnown(t *testing.T) {
	n := node.NewDefault()
	defer n.Close()
	n.RejectTransactions(-32000, "already known")

	_, err := dial(t, n).SendRawTransaction(context.Background(), signedTx(t))
	require.Error(t, err)
	assert.True(t, IsRPCError(err))
	assert.True(t, IsAlreadyKnown(err))
	assert.False(t, IsUnavailable(err))

	var ce *ChainError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, -32000, ce.Code)
	assert.Equal(t, "eth_sendRawTransaction", ce.Method)
}

func TestSendRawTransactionOtherRPCError(t *testing.T) {
	n := node.NewDefault()
	defer n.Close()
	n.RejectTransactions(-32000, "insufficient funds for gas * price + value")

	_, err := dial(t, n).SendRawTransaction(context.Background(), signedTx(t))
	assert.True(t, IsRPCError(err))
	assert.False(t, IsAlreadyKnown(err))
}

func TestTransactionReceipt(t *testing.T) {
	n := node.NewDefault()
	defer n.Close()
	c := dial(t, n)

	hash := common.HexToHash("0xabc")
	receipt, err := c.TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
	assert.Equal(t, uint64(17), receipt.BlockNumber)
	assert.Equal(t, uint64(52000), receipt.GasUsed)
	assert.Equal(t, hash, receipt.TxHash)

	n.SetReceiptPending()
	_, err = c.TransactionReceipt(context.Background(), hash)
	assert.ErrorIs(t, err, ErrReceiptNotFound)

	n.SetReceiptStatus(0)
	receipt, err = c.TransactionReceipt(context.Background(), hash)
	require.NoError(t, err)
	assert.False(t, receipt.Succeeded())
}

func TestUnreachableNode(t *testing.T) {
	n := node.NewDefault()
	c := dial(t, n)
	n.Close()

	_, err := c.BlockNumber(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsRPCError(err))
}

func TestUnknownMethodIsRPCError(t *testing.T) {
	n := node.New()
	defer n.Close()

	_, err := dial(t, n).GasPrice(context.Background())
	assert.True(t, IsRPCError(err))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "unavailable", KindUnavailable.String())
	assert.Equal(t, "rpc", KindRPC.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}
