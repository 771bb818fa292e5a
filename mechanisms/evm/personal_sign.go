package evm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an r || s || v secp256k1 signature.
const SignatureLength = 65

// ErrMalformedSignature is returned when a signature cannot be decoded or recovered.
var ErrMalformedSignature = errors.New(ErrInvalidSignature)

// PersonalMessageHash returns the EIP-191 personal-message digest of message.
func PersonalMessageHash(message string) []byte {
	return accounts.TextHash([]byte(message))
}

// RecoverSigner recovers the address that produced a personal-message signature.
// The signature is hex (0x prefix optional) and may use either 0/1 or 27/28 for v.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(PersonalMessageHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySigner reports whether signature over message was produced by expected.
// Addresses are compared case-insensitively.
func VerifySigner(message, signature string, expected common.Address) (bool, error) {
	recovered, err := RecoverSigner(message, signature)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(recovered.Hex(), expected.Hex()), nil
}

func decodeSignature(signature string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(signature, "0x"), "0X")
	sig, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not hex", ErrMalformedSignature)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}

	// Normalize v to 0/1 for recovery
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return nil, fmt.Errorf("%w: invalid recovery id %d", ErrMalformedSignature, sig[64])
	}
	return sig, nil
}
