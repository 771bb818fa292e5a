package evm

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TransferParams describes a single reward transfer from the reward wallet.
type TransferParams struct {
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int
	Nonce     uint64
	GasPrice  *big.Int
	ChainID   *big.Int
}

// ParseAddress parses a 0x-prefixed, 40 hex digit address.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("%s: missing 0x prefix", ErrInvalidAddress)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: %q is not a 20-byte hex address", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ToBaseUnits scales a whole-token reward to base units (reward * 10^18).
func ToBaseUnits(reward int64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	return new(big.Int).Mul(big.NewInt(reward), scale)
}

// BufferedGasPrice applies the broadcast buffer to a quoted gas price.
// The result is floor(quoted * 130 / 100).
func BufferedGasPrice(quoted *big.Int) *big.Int {
	if quoted == nil {
		return new(big.Int)
	}
	price := new(big.Int).Mul(quoted, big.NewInt(GasPriceBufferPercent))
	return price.Quo(price, big.NewInt(100))
}

// BuildTransferData encodes transfer(recipient, amount) calldata.
//
// Layout: selector (4 bytes) || left-padded recipient (32 bytes) || big-endian amount (32 bytes).
func BuildTransferData(recipient common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, errors.New(ErrAmountOutOfRange + ": amount is nil")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: negative amount %s", ErrAmountOutOfRange, amount)
	}
	word, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("%s: amount %s exceeds uint256", ErrAmountOutOfRange, amount)
	}
	amountBytes := word.Bytes32()

	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(recipient.Bytes(), 32)...)
	data = append(data, amountBytes[:]...)
	return data, nil
}

// BuildTransfer assembles the unsigned legacy transaction for a reward transfer.
// The transaction targets the token contract, carries zero native value, and uses
// the fixed transfer gas limit with the buffered gas price.
func BuildTransfer(params TransferParams) (*UnsignedTransaction, error) {
	if params.ChainID == nil {
		return nil, errors.New("chain id is required")
	}
	data, err := BuildTransferData(params.Recipient, params.Amount)
	if err != nil {
		return nil, err
	}
	return &UnsignedTransaction{
		Nonce:    params.Nonce,
		GasPrice: BufferedGasPrice(params.GasPrice),
		GasLimit: TransferGasLimit,
		To:       params.Token,
		Value:    new(big.Int),
		Data:     data,
		ChainID:  new(big.Int).Set(params.ChainID),
	}, nil
}

// ExplorerTxURL joins an explorer base URL with a transaction hash.
func ExplorerTxURL(base string, txHash string) string {
	if base == "" {
		base = DefaultExplorerURL
	}
	return strings.TrimRight(base, "/") + "/tx/" + txHash
}
