// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvSignerPrivateKey     = "REWARD_SIGNER_PRIVATE_KEY"
	EnvTokenContract        = "REWARD_TOKEN_CONTRACT"
	EnvRPCURL               = "RPC_URL"
	EnvChainID              = "CHAIN_ID"
	EnvExplorerURL          = "EXPLORER_URL"
	EnvPort                 = "PORT"
	EnvRPCTimeout           = "RPC_TIMEOUT"
	EnvConfirmationMode     = "CONFIRMATION_MODE"
	EnvConfirmationAttempts = "CONFIRMATION_ATTEMPTS"
	EnvConfirmationInterval = "CONFIRMATION_INTERVAL"
	EnvReplayTTL            = "REPLAY_TTL"
	EnvReplaySweepInterval  = "REPLAY_SWEEP_INTERVAL"
	EnvRedisURL             = "REDIS_URL"
	EnvLedgerDSN            = "LEDGER_DSN"
	EnvPolicyFile           = "POLICY_FILE"
	EnvRateLimitRPS         = "RATE_LIMIT_RPS"
	EnvRateLimitBurst       = "RATE_LIMIT_BURST"
	EnvLogLevel             = "LOG_LEVEL"
	EnvLogFormat            = "LOG_FORMAT"
)

// Defaults
const (
	DefaultChainID              = 84532
	DefaultExplorerURL          = "https://sepolia.basescan.org"
	DefaultPort                 = "4022"
	DefaultRPCTimeout           = 10 * time.Second
	DefaultConfirmationMode     = "blocking"
	DefaultConfirmationAttempts = 60
	DefaultConfirmationInterval = time.Second
	DefaultReplayTTL            = 10 * time.Minute
	DefaultReplaySweepInterval  = 5 * time.Minute
	DefaultRateLimitRPS         = 2.0
	DefaultRateLimitBurst       = 5
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
)

// Errors returned by Validate
var (
	ErrMissingSignerKey     = errors.New("config: " + EnvSignerPrivateKey + " is required")
	ErrMissingTokenContract = errors.New("config: " + EnvTokenContract + " is required")
	ErrMissingRPCURL        = errors.New("config: " + EnvRPCURL + " is required")
)

// Config is the complete service configuration.
type Config struct {
	// Required - the service refuses claims without these
	SignerPrivateKey string
	TokenContract    string
	RPCURL           string

	// Chain
	ChainID     int64
	ExplorerURL string
	RPCTimeout  time.Duration

	// Confirmation
	ConfirmationMode     string
	ConfirmationAttempts int
	ConfirmationInterval time.Duration

	// Replay protection
	ReplayTTL           time.Duration
	ReplaySweepInterval time.Duration
	RedisURL            string

	// Storage and policy
	LedgerDSN  string
	PolicyFile string

	// HTTP
	Port           string
	RateLimitRPS   float64
	RateLimitBurst int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present and then the process environment.
// Malformed optional values are an error; missing required values are not
// (see Validate).
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		SignerPrivateKey: strings.TrimSpace(getenv(EnvSignerPrivateKey)),
		TokenContract:    strings.TrimSpace(getenv(EnvTokenContract)),
		RPCURL:           strings.TrimSpace(getenv(EnvRPCURL)),

		ChainID:     p.integer(EnvChainID, DefaultChainID),
		ExplorerURL: p.str(EnvExplorerURL, DefaultExplorerURL),
		RPCTimeout:  p.duration(EnvRPCTimeout, DefaultRPCTimeout),

		ConfirmationMode:     strings.ToLower(p.str(EnvConfirmationMode, DefaultConfirmationMode)),
		ConfirmationAttempts: int(p.integer(EnvConfirmationAttempts, DefaultConfirmationAttempts)),
		ConfirmationInterval: p.duration(EnvConfirmationInterval, DefaultConfirmationInterval),

		ReplayTTL:           p.duration(EnvReplayTTL, DefaultReplayTTL),
		ReplaySweepInterval: p.duration(EnvReplaySweepInterval, DefaultReplaySweepInterval),
		RedisURL:            strings.TrimSpace(getenv(EnvRedisURL)),

		LedgerDSN:  strings.TrimSpace(getenv(EnvLedgerDSN)),
		PolicyFile: strings.TrimSpace(getenv(EnvPolicyFile)),

		Port:           p.str(EnvPort, DefaultPort),
		RateLimitRPS:   p.number(EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: int(p.integer(EnvRateLimitBurst, DefaultRateLimitBurst)),

		LogLevel:  p.str(EnvLogLevel, DefaultLogLevel),
		LogFormat: p.str(EnvLogFormat, DefaultLogFormat),
	}

	if cfg.ConfirmationMode != "blocking" && cfg.ConfirmationMode != "async" {
		p.errs = append(p.errs, fmt.Errorf("%s: must be blocking or async, got %q", EnvConfirmationMode, cfg.ConfirmationMode))
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

// Validate checks if the config has all required fields. Every missing
// value is reported.
func (c *Config) Validate() error {
	var errs []error
	if c.SignerPrivateKey == "" {
		errs = append(errs, ErrMissingSignerKey)
	}
	if c.TokenContract == "" {
		errs = append(errs, ErrMissingTokenContract)
	}
	if c.RPCURL == "" {
		errs = append(errs, ErrMissingRPCURL)
	}
	return errors.Join(errs...)
}

// ClaimTimeout bounds one claim request: chain reads and broadcast plus the
// full confirmation poll in blocking mode.
func (c *Config) ClaimTimeout() time.Duration {
	timeout := 4*c.RPCTimeout + 5*time.Second
	if c.ConfirmationMode == "blocking" {
		timeout += time.Duration(c.ConfirmationAttempts) * c.ConfirmationInterval
	}
	return timeout
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int64) int64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must be a positive integer, got %q", key, v))
		return def
	}
	return n
}

func (p *parser) number(key string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must be a positive number, got %q", key, v))
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must be a positive duration, got %q", key, v))
		return def
	}
	return d
}
