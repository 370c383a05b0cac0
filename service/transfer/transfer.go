// Package transfer assembles, signs and submits System Program lamport
// transfers, including draining an account net of its fee.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/jvr0x/wba-solana-enrollment/service/metrics"
	natspkg "github.com/jvr0x/wba-solana-enrollment/service/nats"
	"github.com/jvr0x/wba-solana-enrollment/service/solana"
)

// DrainBalance as Request.Lamports transfers the whole balance minus the fee.
const DrainBalance uint64 = math.MaxUint64

// Gateway is the subset of the RPC gateway the assembler needs.
type Gateway interface {
	LatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
	Balance(ctx context.Context, account solanago.PublicKey) (uint64, error)
	FeeForMessage(ctx context.Context, msg *solanago.Message) (uint64, error)
	SendAndConfirm(ctx context.Context, tx *solanago.Transaction, lastValidBlockHeight uint64) (solanago.Signature, error)
}

// Request describes a transfer from the holder of From to To.
type Request struct {
	From     solanago.PrivateKey
	To       solanago.PublicKey
	Lamports uint64
}

// Drain reports whether the request asks for the entire balance.
func (r Request) Drain() bool {
	return r.Lamports == DrainBalance
}

func (r Request) mode() string {
	if r.Drain() {
		return "drain"
	}
	return "fixed"
}

// Prepared is a signed transfer that has not been submitted.
type Prepared struct {
	Transaction *solanago.Transaction
	Blockhash   solana.Blockhash
	From        solanago.PublicKey
	To          solanago.PublicKey
	Lamports    uint64
	// Fee is the quoted fee; only drains request one.
	Fee   uint64
	Drain bool
}

// Result is a confirmed transfer.
type Result struct {
	Signature solanago.Signature `json:"signature"`
	Lamports  uint64             `json:"lamports"`
	Fee       uint64             `json:"fee"`
	Blockhash solanago.Hash      `json:"blockhash"`
}

// InsufficientFundsError means a drain cannot cover its own fee.
type InsufficientFundsError struct {
	Balance uint64
	Fee     uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d lamports does not cover fee %d lamports", e.Balance, e.Fee)
}

// Options configures an Assembler.
type Options struct {
	// Cluster names the explorer cluster used in published events.
	Cluster string
	// Publisher receives an event per confirmed transfer. Nil disables events.
	Publisher natspkg.Publisher
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Assembler builds and submits transfers through a Gateway.
type Assembler struct {
	gateway   Gateway
	publisher natspkg.Publisher
	metrics   *metrics.Metrics
	cluster   string
	logger    *slog.Logger
}

// NewAssembler creates a new Assembler.
func NewAssembler(gateway Gateway, opts Options, logger *slog.Logger) *Assembler {
	return &Assembler{
		gateway:   gateway,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		cluster:   opts.Cluster,
		logger:    logger,
	}
}

// Transfer prepares, signs and submits req, blocking until the transaction
// is confirmed or rejected. A *solana.SubmissionError with Retriable set
// means the caller may call Transfer again to restart from a fresh blockhash.
func (a *Assembler) Transfer(ctx context.Context, req Request) (*Result, error) {
	prepared, err := a.Prepare(ctx, req)
	if err != nil {
		a.recordTransfer(req.mode(), "error", 0)
		return nil, err
	}
	return a.Submit(ctx, prepared)
}

// Prepare fetches a blockhash, resolves the amount and returns the signed
// transaction without submitting it.
func (a *Assembler) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	from := req.From.PublicKey()

	a.logger.DebugContext(ctx, "preparing transfer",
		"from", from.String(),
		"to", req.To.String(),
		"mode", req.mode(),
	)

	blockhash, err := a.gateway.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	prepared := &Prepared{
		Blockhash: *blockhash,
		From:      from,
		To:        req.To,
		Lamports:  req.Lamports,
		Drain:     req.Drain(),
	}

	if req.Drain() {
		balance, err := a.gateway.Balance(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}

		// The fee is quoted for exactly the message we would send for the full balance.
		probe, err := buildTransfer(from, req.To, balance, blockhash.Hash)
		if err != nil {
			return nil, err
		}
		fee, err := a.gateway.FeeForMessage(ctx, &probe.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate fee: %w", err)
		}
		if a.metrics != nil {
			a.metrics.RecordFeeEstimate(fee)
		}

		if fee >= balance {
			a.logger.WarnContext(ctx, "balance does not cover fee",
				"wallet", from.String(),
				"balance", balance,
				"fee", fee,
			)
			return nil, &InsufficientFundsError{Balance: balance, Fee: fee}
		}

		prepared.Lamports = balance - fee
		prepared.Fee = fee
	}

	tx, err := buildTransfer(from, req.To, prepared.Lamports, blockhash.Hash)
	if err != nil {
		return nil, err
	}

	_, err = tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(from) {
			return &req.From
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	prepared.Transaction = tx

	a.logger.DebugContext(ctx, "transfer prepared",
		"signature", tx.Signatures[0].String(),
		"lamports", prepared.Lamports,
		"fee", prepared.Fee,
		"blockhash", blockhash.Hash.String(),
	)

	return prepared, nil
}

// Submit sends a prepared transfer and waits for confirmation.
func (a *Assembler) Submit(ctx context.Context, p *Prepared) (*Result, error) {
	mode := "fixed"
	if p.Drain {
		mode = "drain"
	}

	sig, err := a.gateway.SendAndConfirm(ctx, p.Transaction, p.Blockhash.LastValidBlockHeight)
	if err != nil {
		a.recordTransfer(mode, "error", 0)
		return nil, fmt.Errorf("failed to submit transfer: %w", err)
	}
	a.recordTransfer(mode, "success", p.Lamports)

	a.logger.InfoContext(ctx, "transfer confirmed",
		"signature", sig.String(),
		"from", p.From.String(),
		"to", p.To.String(),
		"lamports", p.Lamports,
	)

	kind := natspkg.EventKindTransfer
	if p.Drain {
		kind = natspkg.EventKindDrain
	}
	a.publish(ctx, &natspkg.Event{
		Kind:        kind,
		Signature:   sig.String(),
		From:        p.From.String(),
		To:          p.To.String(),
		Lamports:    p.Lamports,
		Fee:         p.Fee,
		Cluster:     a.cluster,
		ExplorerURL: solana.ExplorerURL(sig.String(), a.cluster),
		ConfirmedAt: time.Now().UTC(),
	})

	return &Result{
		Signature: sig,
		Lamports:  p.Lamports,
		Fee:       p.Fee,
		Blockhash: p.Blockhash.Hash,
	}, nil
}

// publish is best effort: the transfer already happened.
func (a *Assembler) publish(ctx context.Context, event *natspkg.Event) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishEvent(ctx, event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish transfer event",
			"signature", event.Signature,
			"error", err,
		)
	}
}

func (a *Assembler) recordTransfer(mode, status string, lamports uint64) {
	if a.metrics != nil {
		a.metrics.RecordTransfer(mode, status, lamports)
	}
}

func buildTransfer(from, to solanago.PublicKey, lamports uint64, blockhash solanago.Hash) (*solanago.Transaction, error) {
	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solanago.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transfer transaction: %w", err)
	}
	return tx, nil
}
