package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/jvr0x/wba-solana-enrollment/service/config"
	"github.com/jvr0x/wba-solana-enrollment/service/keys"
	"github.com/jvr0x/wba-solana-enrollment/service/metrics"
	natspkg "github.com/jvr0x/wba-solana-enrollment/service/nats"
	"github.com/jvr0x/wba-solana-enrollment/service/solana"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// runtime holds everything a chain command needs, built from the global flags.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	gateway   *solana.Client
	publisher natspkg.Publisher
}

// configFromFlags builds a Config from the global flags (which fall back to
// the environment) and validates it.
func configFromFlags(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{
		RPCURL:               c.String("rpc-url"),
		KeypairPath:          c.String("keypair"),
		Commitment:           c.String("commitment"),
		ExplorerCluster:      c.String("cluster"),
		PrereqProgramID:      c.String("program"),
		LogLevel:             c.String("log-level"),
		NATSURL:              c.String("nats-url"),
		MetricsFile:          c.String("metrics-file"),
		RPCRequestsPerSecond: c.Float64("rpc-rps"),
		RPCBurst:             c.Int("rpc-burst"),
		ConfirmTimeout:       c.Duration("confirm-timeout"),
		ConfirmPollInterval:  c.Duration("poll-interval"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := configFromFlags(c)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(c.App.ErrWriter, cfg.LogLevel)

	commitment, err := solana.ParseCommitment(cfg.Commitment)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	rpcClient := solana.NewRPCClient(cfg.RPCURL, cfg.RPCRequestsPerSecond, cfg.RPCBurst)
	gateway := solana.NewClient(rpcClient, endpointLabel(cfg.RPCURL), solana.Options{
		Commitment:   commitment,
		PollInterval: cfg.ConfirmPollInterval,
	}, m, logger)

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		gateway:  gateway,
	}

	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		rt.publisher = publisher
	}

	return rt, nil
}

// close flushes metrics and releases connections. Errors are logged; the
// command's own result has already been decided.
func (r *runtime) close() {
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.logger.Warn("failed to close NATS publisher", "error", err)
		}
	}
	if r.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(r.cfg.MetricsFile, r.registry); err != nil {
			r.logger.Warn("failed to write metrics file",
				"path", r.cfg.MetricsFile,
				"error", err,
			)
		}
	}
}

// signer loads the configured keypair.
func (r *runtime) signer() (solanago.PrivateKey, error) {
	if err := r.cfg.RequireKeypair(); err != nil {
		return nil, err
	}
	return keys.LoadFile(r.cfg.KeypairPath)
}

// confirmContext bounds a submit-and-confirm by the configured timeout.
func (r *runtime) confirmContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.ConfirmTimeout)
}

func (r *runtime) explorerURL(sig solanago.Signature) string {
	return solana.ExplorerURL(sig.String(), r.cfg.ExplorerCluster)
}

// endpointLabel keeps API keys in the URL path or query out of metric labels.
func endpointLabel(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(w io.Writer, levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}
