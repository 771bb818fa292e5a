package chainclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorKind separates unreachable nodes from nodes that answered with an error.
type ErrorKind int

const (
	// KindUnavailable covers transport failures: connection refused, timeouts, non-JSON-RPC HTTP errors.
	KindUnavailable ErrorKind = iota + 1
	// KindRPC covers JSON-RPC error responses from a reachable node.
	KindRPC
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRPC:
		return "rpc"
	default:
		return "unknown"
	}
}

var (
	// ErrReceiptNotFound is returned while a transaction has not been mined.
	ErrReceiptNotFound = errors.New("chainclient: receipt not found")

	// ErrNotConfigured is returned when no RPC endpoint was supplied.
	ErrNotConfigured = errors.New("chainclient: rpc url not configured")
)

// ChainError wraps a failed node call.
type ChainError struct {
	Kind    ErrorKind
	Method  string
	Code    int
	Message string
	Err     error
}

func (e *ChainError) Error() string {
	if e.Kind == KindRPC {
		return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: node unavailable: %v", e.Method, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// classify wraps err according to whether the node produced a JSON-RPC error.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &ChainError{
			Kind:    KindRPC,
			Method:  method,
			Code:    rpcErr.ErrorCode(),
			Message: rpcErr.Error(),
			Err:     err,
		}
	}
	return &ChainError{Kind: KindUnavailable, Method: method, Err: err}
}

// IsUnavailable reports whether err is a transport-level node failure.
func IsUnavailable(err error) bool {
	var ce *ChainError
	return errors.As(err, &ce) && ce.Kind == KindUnavailable
}

// IsRPCError reports whether err is a JSON-RPC error from a reachable node.
func IsRPCError(err error) bool {
	var ce *ChainError
	return errors.As(err, &ce) && ce.Kind == KindRPC
}

// duplicateMarkers are node messages meaning the nonce or transaction was already taken.
var duplicateMarkers = []string{
	"already known",
	"known transaction",
	"replacement transaction underpriced",
	"replacement",
	"nonce too low",
}

// IsAlreadyKnown reports whether a broadcast failed because the transaction
// (or another one with the same nonce) is already in the pool or mined.
func IsAlreadyKnown(err error) bool {
	var ce *ChainError
	if !errors.As(err, &ce) || ce.Kind != KindRPC {
		return false
	}
	msg := strings.ToLower(ce.Message)
	for _, marker := range duplicateMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
