package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	natspkg "github.com/jvr0x/wba-solana-enrollment/service/nats"
	"github.com/jvr0x/wba-solana-enrollment/service/solana"
	"github.com/jvr0x/wba-solana-enrollment/service/transfer"
	"github.com/urfave/cli/v2"
)

const (
	lamportsPerSOL = 1_000_000_000

	// DefaultAirdropLamports is 2 SOL.
	DefaultAirdropLamports = 2 * lamportsPerSOL
)

func lamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / lamportsPerSOL
}

// resolveAddress returns the address argument, or the configured keypair's public key.
func resolveAddress(c *cli.Context, rt *runtime) (solanago.PublicKey, error) {
	if c.NArg() > 0 {
		addr, err := solanago.PublicKeyFromBase58(c.Args().First())
		if err != nil {
			return solanago.PublicKey{}, fmt.Errorf("invalid address %q: %w", c.Args().First(), err)
		}
		return addr, nil
	}
	key, err := rt.signer()
	if err != nil {
		return solanago.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

type balanceOutput struct {
	Address  string  `json:"address"`
	Lamports uint64  `json:"lamports"`
	SOL      float64 `json:"sol"`
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Print the balance of an address (defaults to the keypair's address)",
		ArgsUsage: "[ADDRESS]",
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			addr, err := resolveAddress(c, rt)
			if err != nil {
				return err
			}

			lamports, err := rt.gateway.Balance(c.Context, addr)
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}

			out := balanceOutput{
				Address:  addr.String(),
				Lamports: lamports,
				SOL:      lamportsToSOL(lamports),
			}
			return printOutput(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %d lamports (%.9f SOL)\n", out.Address, out.Lamports, out.SOL)
			})
		},
	}
}

type signatureOutput struct {
	Signature   string `json:"signature"`
	Address     string `json:"address,omitempty"`
	Lamports    uint64 `json:"lamports"`
	ExplorerURL string `json:"explorer_url"`
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:      "airdrop",
		Usage:     "Request test-network lamports (defaults to the keypair's address)",
		ArgsUsage: "[ADDRESS]",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:    "lamports",
				Aliases: []string{"l"},
				Value:   DefaultAirdropLamports,
				Usage:   "Lamports to request",
			},
		},
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			addr, err := resolveAddress(c, rt)
			if err != nil {
				return err
			}
			lamports := c.Uint64("lamports")

			ctx, cancel := rt.confirmContext(c.Context)
			defer cancel()

			sig, err := rt.gateway.RequestAirdrop(ctx, addr, lamports)
			if err != nil {
				return err
			}
			if err := rt.gateway.WaitForConfirmation(ctx, sig, 0); err != nil {
				return fmt.Errorf("airdrop not confirmed: %w", err)
			}

			if rt.publisher != nil {
				event := &natspkg.Event{
					Kind:        natspkg.EventKindAirdrop,
					Signature:   sig.String(),
					To:          addr.String(),
					Lamports:    lamports,
					Cluster:     rt.cfg.ExplorerCluster,
					ExplorerURL: rt.explorerURL(sig),
					ConfirmedAt: time.Now().UTC(),
				}
				if err := rt.publisher.PublishEvent(c.Context, event); err != nil {
					rt.logger.ErrorContext(c.Context, "failed to publish airdrop event",
						"signature", sig.String(),
						"error", err,
					)
				}
			}

			out := signatureOutput{
				Signature:   sig.String(),
				Address:     addr.String(),
				Lamports:    lamports,
				ExplorerURL: rt.explorerURL(sig),
			}
			return printOutput(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "Success! Check out your TX here:\n%s\n", out.ExplorerURL)
			})
		},
	}
}

type transferOutput struct {
	Signature   string              `json:"signature"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Lamports    uint64              `json:"lamports"`
	Fee         uint64              `json:"fee"`
	Blockhash   string              `json:"blockhash"`
	ExplorerURL string              `json:"explorer_url,omitempty"`
	Transaction string              `json:"transaction,omitempty"`
	Summary     *solana.Transaction `json:"summary,omitempty"`
}

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfer",
		Usage:     "Transfer lamports from the keypair to an address",
		ArgsUsage: "TO_ADDRESS",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:    "lamports",
				Aliases: []string{"l"},
				Value:   1_000_000,
				Usage:   "Lamports to transfer",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Transfer the entire balance minus the fee",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the signed transaction without sending it",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("destination address is required")
			}
			if c.Bool("all") && c.IsSet("lamports") {
				return fmt.Errorf("--all and --lamports are mutually exclusive")
			}
			if !c.Bool("all") && c.Uint64("lamports") == transfer.DrainBalance {
				return fmt.Errorf("--lamports %d is reserved, use --all to transfer the whole balance", transfer.DrainBalance)
			}

			to, err := solanago.PublicKeyFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid destination address %q: %w", c.Args().First(), err)
			}

			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			from, err := rt.signer()
			if err != nil {
				return err
			}

			req := transfer.Request{From: from, To: to, Lamports: c.Uint64("lamports")}
			if c.Bool("all") {
				req.Lamports = transfer.DrainBalance
			}

			assembler := transfer.NewAssembler(rt.gateway, transfer.Options{
				Cluster:   rt.cfg.ExplorerCluster,
				Publisher: rt.publisher,
				Metrics:   rt.metrics,
			}, rt.logger)

			ctx, cancel := rt.confirmContext(c.Context)
			defer cancel()

			if c.Bool("dry-run") {
				return printDryRun(c, assembler, req)
			}

			result, err := assembler.Transfer(ctx, req)
			if err != nil {
				return err
			}

			out := transferOutput{
				Signature:   result.Signature.String(),
				From:        from.PublicKey().String(),
				To:          to.String(),
				Lamports:    result.Lamports,
				Fee:         result.Fee,
				Blockhash:   result.Blockhash.String(),
				ExplorerURL: rt.explorerURL(result.Signature),
			}
			return printOutput(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "Transferred %d lamports to %s\n", out.Lamports, out.To)
				fmt.Fprintf(w, "Success! Check out your TX here:\n%s\n", out.ExplorerURL)
			})
		},
	}
}

func printDryRun(c *cli.Context, assembler *transfer.Assembler, req transfer.Request) error {
	prepared, err := assembler.Prepare(c.Context, req)
	if err != nil {
		return err
	}

	raw, err := prepared.Transaction.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize transaction: %w", err)
	}
	summary, err := solana.Summarize(prepared.Transaction)
	if err != nil {
		return err
	}

	out := transferOutput{
		Signature:   prepared.Transaction.Signatures[0].String(),
		From:        prepared.From.String(),
		To:          prepared.To.String(),
		Lamports:    prepared.Lamports,
		Fee:         prepared.Fee,
		Blockhash:   prepared.Blockhash.Hash.String(),
		Transaction: base64.StdEncoding.EncodeToString(raw),
		Summary:     summary,
	}
	return printOutput(c, out, func(w io.Writer) {
		fmt.Fprintf(w, "Would transfer %d lamports to %s (fee %d)\n", out.Lamports, out.To, out.Fee)
		fmt.Fprintln(w, out.Transaction)
	})
}
