package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jvr0x/wba-solana-enrollment/service/keys"
	"github.com/urfave/cli/v2"
)

type keyOutput struct {
	PublicKey   string          `json:"public_key,omitempty"`
	WalletBytes json.RawMessage `json:"wallet_bytes,omitempty"`
	Base58      string          `json:"base58,omitempty"`
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a new keypair and print it (nothing is written to disk)",
		Action: func(c *cli.Context) error {
			key, err := keys.Generate()
			if err != nil {
				return err
			}

			walletBytes := keys.FormatWalletBytes(key)
			out := keyOutput{
				PublicKey:   key.PublicKey().String(),
				WalletBytes: json.RawMessage(walletBytes),
			}

			return printOutput(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "You've generated a new Solana wallet: %s\n\n", out.PublicKey)
				fmt.Fprintf(w, "To save your wallet, copy and paste the following into a JSON file:\n")
				fmt.Fprintln(w, walletBytes)
			})
		},
	}
}

func keyCommands() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "Key encoding conversion commands",
		Subcommands: []*cli.Command{
			keyToWalletCommand(),
			keyToBase58Command(),
			keyPubkeyCommand(),
		},
	}
}

func keyToWalletCommand() *cli.Command {
	return &cli.Command{
		Name:      "to-wallet",
		Usage:     "Convert a base58 private key to wallet file bytes",
		ArgsUsage: "[BASE58_KEY]",
		Action: func(c *cli.Context) error {
			input, err := readInput(c, "base58 private key")
			if err != nil {
				return err
			}

			key, err := keys.KeypairFromBase58(input)
			if err != nil {
				return err
			}

			walletBytes := keys.FormatWalletBytes(key)
			return printOutput(c, keyOutput{WalletBytes: json.RawMessage(walletBytes)}, func(w io.Writer) {
				fmt.Fprintln(w, "Your wallet file is:")
				fmt.Fprintln(w, walletBytes)
			})
		},
	}
}

func keyToBase58Command() *cli.Command {
	return &cli.Command{
		Name:      "to-base58",
		Usage:     "Convert wallet file bytes to a base58 private key",
		ArgsUsage: "[WALLET_BYTES]",
		Action: func(c *cli.Context) error {
			input, err := readInput(c, "wallet bytes")
			if err != nil {
				return err
			}

			raw, err := keys.ParseWalletBytes(input)
			if err != nil {
				return err
			}
			key, err := keys.KeypairFromBytes(raw)
			if err != nil {
				return err
			}

			encoded := keys.EncodeBase58(key)
			return printOutput(c, keyOutput{Base58: encoded}, func(w io.Writer) {
				fmt.Fprintln(w, "Your private key is:")
				fmt.Fprintln(w, encoded)
			})
		},
	}
}

func keyPubkeyCommand() *cli.Command {
	return &cli.Command{
		Name:      "pubkey",
		Usage:     "Print the public key of a keypair file (defaults to --keypair)",
		ArgsUsage: "[KEYPAIR_FILE]",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = c.String("keypair")
			}
			if path == "" {
				return fmt.Errorf("keypair file is required (argument, --keypair or KEYPAIR_PATH)")
			}

			key, err := keys.LoadFile(path)
			if err != nil {
				return err
			}

			out := keyOutput{PublicKey: key.PublicKey().String()}
			return printOutput(c, out, func(w io.Writer) {
				fmt.Fprintln(w, out.PublicKey)
			})
		},
	}
}
