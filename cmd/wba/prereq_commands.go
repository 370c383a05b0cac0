package main

import (
	"fmt"
	"io"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/jvr0x/wba-solana-enrollment/service/pda"
	"github.com/jvr0x/wba-solana-enrollment/service/prereq"
	"github.com/urfave/cli/v2"
)

type pdaOutput struct {
	ProgramID string `json:"program_id"`
	Address   string `json:"address"`
	Bump      uint8  `json:"bump"`
}

func pdaCommand() *cli.Command {
	return &cli.Command{
		Name:      "pda",
		Usage:     "Derive a program address",
		ArgsUsage: "PROGRAM_ID SEED...",
		Description: `Seeds are given as str:<text>, pubkey:<base58>, hex:<hex> or base58:<base58>.
A seed without a recognised prefix is used as text.

Example:
   wba pda <program id> str:prereq pubkey:<signer>`,
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("program id is required")
			}

			programID, err := solanago.PublicKeyFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid program id %q: %w", c.Args().First(), err)
			}

			args := c.Args().Tail()
			seeds := make([][]byte, len(args))
			for i, arg := range args {
				seeds[i], err = pda.ParseSeed(arg)
				if err != nil {
					return fmt.Errorf("seed %d: %w", i+1, err)
				}
			}

			addr, err := pda.Find(programID, seeds...)
			if err != nil {
				return err
			}

			out := pdaOutput{
				ProgramID: programID.String(),
				Address:   addr.PublicKey.String(),
				Bump:      addr.Bump,
			}
			return printOutput(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s (bump %d)\n", out.Address, out.Bump)
			})
		},
	}
}

func prereqCommands() *cli.Command {
	return &cli.Command{
		Name:  "prereq",
		Usage: "Enrollment program commands",
		Subcommands: []*cli.Command{
			prereqCommand("complete", "Record enrollment with a GitHub handle"),
			prereqCommand("update", "Change the GitHub handle of an existing enrollment"),
		},
	}
}

type prereqOutput struct {
	Signature   string `json:"signature"`
	Signer      string `json:"signer"`
	Prereq      string `json:"prereq"`
	Bump        uint8  `json:"bump"`
	ExplorerURL string `json:"explorer_url"`
}

func prereqCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "GITHUB_HANDLE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("github handle is required")
			}
			github := []byte(c.Args().First())

			rt, err := newRuntime(c)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.cfg.RequirePrereqProgram(); err != nil {
				return err
			}
			programID, err := solanago.PublicKeyFromBase58(rt.cfg.PrereqProgramID)
			if err != nil {
				return fmt.Errorf("invalid program id %q: %w", rt.cfg.PrereqProgramID, err)
			}

			signer, err := rt.signer()
			if err != nil {
				return err
			}

			client := prereq.NewClient(rt.gateway, programID, rt.publisher, rt.cfg.ExplorerCluster, rt.logger)

			ctx, cancel := rt.confirmContext(c.Context)
			defer cancel()

			var result *prereq.Result
			if name == "update" {
				result, err = client.Update(ctx, signer, github)
			} else {
				result, err = client.Complete(ctx, signer, github)
			}
			if err != nil {
				return err
			}

			out := prereqOutput{
				Signature:   result.Signature.String(),
				Signer:      signer.PublicKey().String(),
				Prereq:      result.Prereq.PublicKey.String(),
				Bump:        result.Prereq.Bump,
				ExplorerURL: rt.explorerURL(result.Signature),
			}
			return printOutput(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "Success! Check out your TX here:\n%s\n", out.ExplorerURL)
			})
		},
	}
}
