package solana

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// TransactionErrorKey is the string key the cluster reports for a failed transaction.
type TransactionErrorKey string

const (
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
	TransactionErrorMissingSignatureForFee  TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorAlreadyProcessed        TransactionErrorKey = "AlreadyProcessed"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"

	// Not reported by the cluster: the blockhash aged out while we waited for confirmation.
	TransactionErrorBlockhashExpired TransactionErrorKey = "BlockhashExpired"
	// Not reported by the cluster: the caller's context ended before confirmation.
	TransactionErrorConfirmationTimeout TransactionErrorKey = "ConfirmationTimeout"
	TransactionErrorUnknown             TransactionErrorKey = "Unknown"
)

// Retriable reports whether restarting the flow with a fresh blockhash can succeed.
func (k TransactionErrorKey) Retriable() bool {
	switch k {
	case TransactionErrorBlockhashNotFound, TransactionErrorBlockhashExpired:
		return true
	}
	return false
}

// NetworkError means the gateway could not be reached or returned no usable data.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FeeEstimationError means the gateway rejected the fee request or quoted no fee.
type FeeEstimationError struct {
	Err error
}

func (e *FeeEstimationError) Error() string {
	return fmt.Sprintf("fee estimation failed: %v", e.Err)
}

func (e *FeeEstimationError) Unwrap() error {
	return e.Err
}

// SubmissionError means a signed transaction was rejected, expired, or never
// confirmed. Signature identifies the transaction so the caller can re-query
// the ledger; a transaction that was not confirmed may still land.
type SubmissionError struct {
	Signature solana.Signature
	Key       TransactionErrorKey
	Retriable bool
	Err       error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("transaction submission failed (%s", e.Key)
	if e.Retriable {
		msg += ", retriable"
	}
	msg += ")"
	if e.Signature != (solana.Signature{}) {
		msg += " signature " + e.Signature.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsRetriable reports whether err allows the caller to restart from a fresh
// blockhash. Network errors are retriable; submission errors only when their
// key says so.
func IsRetriable(err error) bool {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Retriable
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

func newSubmissionError(sig solana.Signature, key TransactionErrorKey, err error) *SubmissionError {
	return &SubmissionError{
		Signature: sig,
		Key:       key,
		Retriable: key.Retriable(),
		Err:       err,
	}
}

// asRPCError returns the JSON-RPC error if the server answered with one.
// Anything else is a transport failure.
func asRPCError(err error) (*jsonrpc.RPCError, bool) {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// ParseTransactionErrorKey extracts the error key from a transaction error
// value as the cluster serializes it: either a bare string
// ("BlockhashNotFound") or a single-key object ({"InstructionError": [...]}).
func ParseTransactionErrorKey(v interface{}) TransactionErrorKey {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return TransactionErrorKey(t)
	case map[string]interface{}:
		for k := range t {
			return TransactionErrorKey(k)
		}
	}
	return TransactionErrorUnknown
}

// classifySendError maps a sendTransaction failure to an error key.
// Preflight failures carry the transaction error under data.err; older nodes
// only put it in the message.
func classifySendError(rpcErr *jsonrpc.RPCError) TransactionErrorKey {
	if data, ok := rpcErr.Data.(map[string]interface{}); ok {
		if txErr, ok := data["err"]; ok && txErr != nil {
			if key := ParseTransactionErrorKey(txErr); key != "" {
				return key
			}
		}
	}

	msg := strings.ToLower(rpcErr.Message)
	switch {
	case strings.Contains(msg, "blockhash not found"):
		return TransactionErrorBlockhashNotFound
	case strings.Contains(msg, "insufficient funds for fee"):
		return TransactionErrorInsufficientFundsForFee
	case strings.Contains(msg, "signature verification failure"), strings.Contains(msg, "signature failure"):
		return TransactionErrorSignatureFailure
	case strings.Contains(msg, "already been processed"):
		return TransactionErrorAlreadyProcessed
	}
	return TransactionErrorUnknown
}
