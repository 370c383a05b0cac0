package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Commitment levels accepted by the RPC gateway.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Config holds all application configuration.
// It is passed explicitly to every operation; nothing reads process-global state.
type Config struct {
	// Solana configuration
	RPCURL          string
	KeypairPath     string
	Commitment      string
	ExplorerCluster string

	// Enrollment program
	PrereqProgramID string

	// Logging
	LogLevel string

	// Optional sinks
	NATSURL     string
	MetricsFile string

	// RPC client behaviour
	RPCRequestsPerSecond float64
	RPCBurst             int
	ConfirmTimeout       time.Duration
	ConfirmPollInterval  time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Solana configuration
	cfg.RPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.RPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	cfg.KeypairPath = os.Getenv("KEYPAIR_PATH")
	cfg.Commitment = getEnvOrDefault("SOLANA_COMMITMENT", CommitmentConfirmed)
	if !validCommitment(cfg.Commitment) {
		errs = append(errs, fmt.Errorf("SOLANA_COMMITMENT must be one of processed, confirmed, finalized (got %q)", cfg.Commitment))
	}
	cfg.ExplorerCluster = getEnvOrDefault("EXPLORER_CLUSTER", "devnet")

	cfg.PrereqProgramID = os.Getenv("PREREQ_PROGRAM_ID")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.MetricsFile = os.Getenv("METRICS_FILE")

	// RPC client behaviour
	rps, err := parseFloat("RPC_REQUESTS_PER_SECOND", 0)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCRequestsPerSecond = rps
	}

	burst, err := parseInt("RPC_BURST", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCBurst = burst
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "90s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "500ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// The CLI builds its Config from flags and calls this directly.
func (c *Config) Validate() error {
	var errs []error

	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("RPCURL is required"))
	}

	if !validCommitment(c.Commitment) {
		errs = append(errs, fmt.Errorf("Commitment must be one of processed, confirmed, finalized"))
	}

	if c.RPCRequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("RPCRequestsPerSecond cannot be negative"))
	}

	if c.RPCRequestsPerSecond > 0 && c.RPCBurst < 1 {
		errs = append(errs, fmt.Errorf("RPCBurst must be at least 1 when rate limiting is enabled"))
	}

	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be positive"))
	}

	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive"))
	}

	if c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval cannot be greater than ConfirmTimeout"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// RequireKeypair reports an error when no key file path is configured.
// Only commands that sign need it.
func (c *Config) RequireKeypair() error {
	if c.KeypairPath == "" {
		return fmt.Errorf("a keypair file is required (--keypair or KEYPAIR_PATH)")
	}
	return nil
}

// RequirePrereqProgram reports an error when the enrollment program id is missing.
func (c *Config) RequirePrereqProgram() error {
	if c.PrereqProgramID == "" {
		return fmt.Errorf("the enrollment program id is required (--program or PREREQ_PROGRAM_ID)")
	}
	return nil
}

func validCommitment(s string) bool {
	switch s {
	case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
		return true
	}
	return false
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
