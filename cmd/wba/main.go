package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wba",
		Usage: "Solana devnet enrollment toolkit",
		Description: `Generate keypairs, request devnet funds, transfer lamports, convert key
encodings, derive program addresses and enroll with the prerequisite program.

Every command that touches the chain blocks until its transaction is confirmed
at the configured commitment, or fails.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			keygenCommand(),
			keyCommands(),
			balanceCommand(),
			airdropCommand(),
			transferCommand(),
			pdaCommand(),
			prereqCommands(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana JSON-RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.devnet.solana.com",
			},
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "Path to a keypair file (JSON byte array)",
				EnvVars: []string{"KEYPAIR_PATH"},
			},
			&cli.StringFlag{
				Name:    "commitment",
				Usage:   "Commitment level for reads and confirmation (processed, confirmed, finalized)",
				EnvVars: []string{"SOLANA_COMMITMENT"},
				Value:   "confirmed",
			},
			&cli.StringFlag{
				Name:    "cluster",
				Usage:   "Explorer cluster used in transaction links",
				EnvVars: []string{"EXPLORER_CLUSTER"},
				Value:   "devnet",
			},
			&cli.StringFlag{
				Name:    "program",
				Usage:   "Enrollment program id",
				EnvVars: []string{"PREREQ_PROGRAM_ID"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL; confirmed operations are published when set",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write Prometheus metrics to this file on exit",
				EnvVars: []string{"METRICS_FILE"},
			},
			&cli.Float64Flag{
				Name:    "rpc-rps",
				Usage:   "Client-side RPC rate limit in requests per second (0 = unlimited)",
				EnvVars: []string{"RPC_REQUESTS_PER_SECOND"},
			},
			&cli.IntFlag{
				Name:    "rpc-burst",
				Usage:   "Burst size for the RPC rate limit",
				EnvVars: []string{"RPC_BURST"},
				Value:   5,
			},
			&cli.DurationFlag{
				Name:    "confirm-timeout",
				Usage:   "How long to wait for a transaction to be confirmed",
				EnvVars: []string{"CONFIRM_TIMEOUT"},
				Value:   90 * time.Second,
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often to poll signature status while confirming",
				EnvVars: []string{"CONFIRM_POLL_INTERVAL"},
				Value:   500 * time.Millisecond,
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to the JSON output (repeatable, applied in order; implies --json)",
			},
		},
	}
}
