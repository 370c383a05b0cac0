package prereq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	natspkg "github.com/jvr0x/wba-solana-enrollment/service/nats"
	"github.com/jvr0x/wba-solana-enrollment/service/pda"
	"github.com/jvr0x/wba-solana-enrollment/service/solana"
)

// Gateway is the subset of the RPC gateway the enrollment client needs.
type Gateway interface {
	LatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
	SendAndConfirm(ctx context.Context, tx *solanago.Transaction, lastValidBlockHeight uint64) (solanago.Signature, error)
}

// Result is a confirmed enrollment transaction.
type Result struct {
	Signature solanago.Signature `json:"signature"`
	Prereq    pda.Address        `json:"prereq"`
}

// Client invokes the enrollment program.
type Client struct {
	gateway   Gateway
	programID solanago.PublicKey
	publisher natspkg.Publisher
	cluster   string
	logger    *slog.Logger
}

// NewClient creates a client for the program at programID.
// If publisher is nil, no events are published.
func NewClient(gateway Gateway, programID solanago.PublicKey, publisher natspkg.Publisher, cluster string, logger *slog.Logger) *Client {
	return &Client{
		gateway:   gateway,
		programID: programID,
		publisher: publisher,
		cluster:   cluster,
		logger:    logger,
	}
}

// Complete records the signer's enrollment with their GitHub handle.
func (c *Client) Complete(ctx context.Context, signer solanago.PrivateKey, github []byte) (*Result, error) {
	return c.invoke(ctx, "complete", signer, func(accounts Accounts) (solanago.Instruction, error) {
		return NewCompleteInstruction(c.programID, accounts, CompleteArgs{Github: github})
	})
}

// Update changes the GitHub handle of an existing enrollment.
func (c *Client) Update(ctx context.Context, signer solanago.PrivateKey, github []byte) (*Result, error) {
	return c.invoke(ctx, "update", signer, func(accounts Accounts) (solanago.Instruction, error) {
		return NewUpdateInstruction(c.programID, accounts, UpdateArgs{Github: github})
	})
}

func (c *Client) invoke(ctx context.Context, name string, signer solanago.PrivateKey, build func(Accounts) (solanago.Instruction, error)) (*Result, error) {
	signerKey := signer.PublicKey()

	blockhash, err := c.gateway.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	accounts, addr, err := NewAccounts(c.programID, signerKey)
	if err != nil {
		return nil, err
	}

	instruction, err := build(accounts)
	if err != nil {
		return nil, err
	}

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{instruction},
		blockhash.Hash,
		solanago.TransactionPayer(signerKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s transaction: %w", name, err)
	}

	_, err = tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(signerKey) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s transaction: %w", name, err)
	}

	c.logger.DebugContext(ctx, "submitting enrollment instruction",
		"instruction", name,
		"signer", signerKey.String(),
		"prereq", addr.PublicKey.String(),
		"bump", addr.Bump,
	)

	sig, err := c.gateway.SendAndConfirm(ctx, tx, blockhash.LastValidBlockHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s: %w", name, err)
	}

	c.logger.InfoContext(ctx, "enrollment instruction confirmed",
		"instruction", name,
		"signature", sig.String(),
		"signer", signerKey.String(),
	)

	if c.publisher != nil {
		event := &natspkg.Event{
			Kind:        natspkg.EventKindEnroll,
			Signature:   sig.String(),
			From:        signerKey.String(),
			Cluster:     c.cluster,
			ExplorerURL: solana.ExplorerURL(sig.String(), c.cluster),
			ConfirmedAt: time.Now().UTC(),
		}
		if err := c.publisher.PublishEvent(ctx, event); err != nil {
			c.logger.ErrorContext(ctx, "failed to publish enrollment event",
				"signature", sig.String(),
				"error", err,
			)
		}
	}

	return &Result{Signature: sig, Prereq: addr}, nil
}
