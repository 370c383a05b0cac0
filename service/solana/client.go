package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jvr0x/wba-solana-enrollment/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetBalanceResult, error)

	GetFeeForMessage(
		ctx context.Context,
		message string,
		commitment rpc.CommitmentType,
	) (*rpc.GetFeeForMessageResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetBlockHeight(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (uint64, error)

	RequestAirdrop(
		ctx context.Context,
		account solana.PublicKey,
		lamports uint64,
		commitment rpc.CommitmentType,
	) (solana.Signature, error)
}

// DefaultPollInterval is how often signature statuses are polled while waiting for confirmation.
const DefaultPollInterval = 500 * time.Millisecond

// Options tunes a Client.
type Options struct {
	Commitment   rpc.CommitmentType
	PollInterval time.Duration
}

// Client is the chain RPC gateway. It wraps the RPC client with the handful
// of operations the transfer and enrollment flows need, and classifies
// failures into NetworkError, FeeEstimationError and SubmissionError.
// Nothing is cached between calls.
type Client struct {
	rpc          RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	endpoint     string // RPC endpoint identifier for metrics (e.g., "devnet", rpc host)
	commitment   rpc.CommitmentType
	pollInterval time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Client{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		endpoint:     endpoint,
		commitment:   opts.Commitment,
		pollInterval: opts.PollInterval,
	}
}

// ParseCommitment converts a configured commitment level to the RPC type.
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch rpc.CommitmentType(s) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return rpc.CommitmentType(s), nil
	}
	return "", fmt.Errorf("unknown commitment level %q", s)
}

func (c *Client) recordCall(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.Timer(start, func(duration float64) {
		c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
	})()
}

// LatestBlockhash fetches a recent blockhash and its last valid block height.
func (c *Client) LatestBlockhash(ctx context.Context) (*Blockhash, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	c.recordCall("GetLatestBlockhash", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get latest blockhash", "error", err)
		return nil, &NetworkError{Op: "getLatestBlockhash", Err: err}
	}
	if out == nil || out.Value == nil || out.Value.Blockhash == (solana.Hash{}) {
		return nil, &NetworkError{Op: "getLatestBlockhash", Err: errors.New("empty blockhash response")}
	}

	c.logger.DebugContext(ctx, "fetched latest blockhash",
		"blockhash", out.Value.Blockhash.String(),
		"last_valid_block_height", out.Value.LastValidBlockHeight,
	)

	return &Blockhash{
		Hash:                 out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// Balance returns the lamport balance of account.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, account, c.commitment)
	c.recordCall("GetBalance", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get balance",
			"wallet", account.String(),
			"error", err,
		)
		return 0, &NetworkError{Op: "getBalance", Err: err}
	}
	if out == nil {
		return 0, &NetworkError{Op: "getBalance", Err: errors.New("empty balance response")}
	}

	c.logger.DebugContext(ctx, "fetched balance",
		"wallet", account.String(),
		"lamports", out.Value,
	)
	return out.Value, nil
}

// FeeForMessage asks the cluster what it would charge for msg.
// The message must reference a blockhash the node still knows.
func (c *Client) FeeForMessage(ctx context.Context, msg *solana.Message) (uint64, error) {
	data, err := msg.MarshalBinary()
	if err != nil {
		return 0, &FeeEstimationError{Err: fmt.Errorf("failed to serialize message: %w", err)}
	}

	start := time.Now()
	out, err := c.rpc.GetFeeForMessage(ctx, base64.StdEncoding.EncodeToString(data), c.commitment)
	c.recordCall("GetFeeForMessage", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get fee for message", "error", err)
		if _, ok := asRPCError(err); ok {
			return 0, &FeeEstimationError{Err: err}
		}
		return 0, &NetworkError{Op: "getFeeForMessage", Err: err}
	}
	if out == nil || out.Value == nil {
		return 0, &FeeEstimationError{Err: errors.New("gateway returned no fee for the message")}
	}

	c.logger.DebugContext(ctx, "fetched fee for message", "fee", *out.Value)
	return *out.Value, nil
}

// SendAndConfirm submits a signed transaction and blocks until it reaches the
// client's commitment level, fails on chain, or its blockhash expires.
// lastValidBlockHeight comes from the blockhash the transaction references;
// zero disables the expiry check.
func (c *Client) SendAndConfirm(ctx context.Context, tx *solana.Transaction, lastValidBlockHeight uint64) (solana.Signature, error) {
	var localSig solana.Signature
	if len(tx.Signatures) > 0 {
		localSig = tx.Signatures[0]
	}

	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	c.recordCall("SendTransaction", start, err)
	if err != nil {
		if rpcErr, ok := asRPCError(err); ok {
			subErr := newSubmissionError(localSig, classifySendError(rpcErr), err)
			c.recordSubmission(subErr, start)
			c.logger.ErrorContext(ctx, "transaction rejected",
				"signature", localSig.String(),
				"key", subErr.Key,
				"retriable", subErr.Retriable,
				"error", err,
			)
			return solana.Signature{}, subErr
		}
		c.logger.ErrorContext(ctx, "failed to deliver transaction",
			"signature", localSig.String(),
			"error", err,
		)
		return solana.Signature{}, fmt.Errorf("transaction %s may not have been delivered: %w",
			localSig, &NetworkError{Op: "sendTransaction", Err: err})
	}

	c.logger.InfoContext(ctx, "transaction submitted", "signature", sig.String())

	err = c.WaitForConfirmation(ctx, sig, lastValidBlockHeight)
	c.recordSubmission(err, start)
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (c *Client) recordSubmission(err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	outcome := "confirmed"
	if err != nil {
		outcome = "failed"
		if IsRetriable(err) {
			outcome = "retriable"
		}
	}
	c.metrics.RecordSubmission(outcome, time.Since(start).Seconds())
}

// WaitForConfirmation polls the signature status until the client's
// commitment is reached. Transient polling failures are logged and polling
// continues; the caller bounds the wait through ctx.
func (c *Client) WaitForConfirmation(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		c.recordCall("GetSignatureStatuses", start, err)

		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "failed to get signature status, will poll again",
				"signature", sig.String(),
				"error", err,
			)
		case out != nil && len(out.Value) > 0 && out.Value[0] != nil:
			status := out.Value[0]
			if status.Err != nil {
				key := ParseTransactionErrorKey(status.Err)
				c.logger.ErrorContext(ctx, "transaction failed on chain",
					"signature", sig.String(),
					"key", key,
				)
				return newSubmissionError(sig, key, fmt.Errorf("transaction failed: %v", status.Err))
			}
			if commitmentReached(status, c.commitment) {
				c.logger.InfoContext(ctx, "transaction confirmed",
					"signature", sig.String(),
					"slot", status.Slot,
					"status", status.ConfirmationStatus,
				)
				return nil
			}
		case lastValidBlockHeight > 0:
			// Not seen yet; give up once the blockhash can no longer land.
			heightStart := time.Now()
			height, err := c.rpc.GetBlockHeight(ctx, c.commitment)
			c.recordCall("GetBlockHeight", heightStart, err)
			if err == nil && height > lastValidBlockHeight {
				c.logger.WarnContext(ctx, "blockhash expired before confirmation",
					"signature", sig.String(),
					"block_height", height,
					"last_valid_block_height", lastValidBlockHeight,
				)
				return newSubmissionError(sig, TransactionErrorBlockhashExpired,
					fmt.Errorf("block height %d passed last valid height %d", height, lastValidBlockHeight))
			}
		}

		select {
		case <-ctx.Done():
			return newSubmissionError(sig, TransactionErrorConfirmationTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

var commitmentRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

func commitmentReached(status *rpc.SignatureStatusesResult, want rpc.CommitmentType) bool {
	have := commitmentRank[status.ConfirmationStatus]
	if status.ConfirmationStatus == "" {
		// Nodes that omit the field report rooted transactions with nil confirmations.
		have = commitmentRank[rpc.ConfirmationStatusProcessed]
		if status.Confirmations == nil {
			have = commitmentRank[rpc.ConfirmationStatusFinalized]
		}
	}
	return have >= commitmentRank[rpc.ConfirmationStatusType(want)]
}

// RequestAirdrop asks the cluster faucet for lamports. It returns as soon as
// the request is accepted; use WaitForConfirmation to block on it.
func (c *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.RequestAirdrop(ctx, account, lamports, c.commitment)
	c.recordCall("RequestAirdrop", start, err)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordAirdrop("error")
		}
		c.logger.ErrorContext(ctx, "airdrop request failed",
			"wallet", account.String(),
			"lamports", lamports,
			"error", err,
		)
		if _, ok := asRPCError(err); ok {
			return solana.Signature{}, fmt.Errorf("airdrop request rejected: %w", err)
		}
		return solana.Signature{}, &NetworkError{Op: "requestAirdrop", Err: err}
	}

	if c.metrics != nil {
		c.metrics.RecordAirdrop("success")
	}
	c.logger.InfoContext(ctx, "airdrop requested",
		"wallet", account.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)
	return sig, nil
}
