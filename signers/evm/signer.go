package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	rewardsevm "github.com/questlabs/rewards-go/mechanisms/evm"
)

// LocalKeySigner implements rewardsevm.TxSigner using an in-process ECDSA private key.
type LocalKeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

var _ rewardsevm.TxSigner = (*LocalKeySigner)(nil)

// NewLocalKeySigner creates a transaction signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Returns:
//
//	Signer whose Address() is the reward wallet
//	Error if the private key is invalid
//
// Example:
//
//	signer, err := evm.NewLocalKeySigner(os.Getenv("REWARD_SIGNER_PRIVATE_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	disburser := rewards.NewDisburser(settings, rewards.WithSigner(signer))
func NewLocalKeySigner(privateKeyHex string) (*LocalKeySigner, error) {
	// Strip 0x prefix if present
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return NewLocalKeySignerFromKey(privateKey), nil
}

// NewLocalKeySignerFromKey wraps an already parsed private key.
func NewLocalKeySignerFromKey(privateKey *ecdsa.PrivateKey) *LocalKeySigner {
	return &LocalKeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the reward wallet address.
func (s *LocalKeySigner) Address() common.Address {
	return s.address
}

// SignTransaction signs an unsigned legacy transfer with EIP-155 replay protection.
func (s *LocalKeySigner) SignTransaction(ctx context.Context, unsigned *rewardsevm.UnsignedTransaction) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if unsigned == nil {
		return nil, errors.New(rewardsevm.ErrMissingTransaction)
	}
	if unsigned.ChainID == nil || unsigned.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}

	signer := types.NewEIP155Signer(unsigned.ChainID)
	signed, err := types.SignTx(unsigned.Transaction(), signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// SignMessage produces a personal-message signature (v in 27/28 form).
func (s *LocalKeySigner) SignMessage(message string) ([]byte, error) {
	sig, err := crypto.Sign(rewardsevm.PersonalMessageHash(message), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
