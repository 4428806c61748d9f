package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"TOKENIDX_PORT" default:"8080"`
	LogLevel string `envconfig:"TOKENIDX_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"TOKENIDX_LOG_DIR" default:"./logs"`
	Network  string `envconfig:"TOKENIDX_NETWORK" default:"mainnet"`

	AlchemyAPIKey string `envconfig:"TOKENIDX_ALCHEMY_API_KEY"`
	AlchemyURL    string `envconfig:"TOKENIDX_ALCHEMY_URL" default:"https://eth-mainnet.g.alchemy.com/v2"`

	// EthRPCURL is used for ENS resolution. Empty means the Alchemy endpoint.
	EthRPCURL string `envconfig:"TOKENIDX_ETH_RPC_URL"`

	// WalletRPCURL points at an external wallet provider. Empty disables the wallet connector.
	WalletRPCURL string `envconfig:"TOKENIDX_WALLET_RPC_URL"`

	MetadataConcurrency int `envconfig:"TOKENIDX_METADATA_CONCURRENCY" default:"8"`
	RateLimitRPS        int `envconfig:"TOKENIDX_RATE_LIMIT_RPS" default:"10"`
	MaxRetries          int `envconfig:"TOKENIDX_MAX_RETRIES" default:"2"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Network != NetworkMainnet {
		return fmt.Errorf("%w: network must be %q, got %q", ErrInvalidConfig, NetworkMainnet, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.MetadataConcurrency < 1 || c.MetadataConcurrency > MaxMetadataConcurrency {
		return fmt.Errorf("%w: metadata concurrency must be 1-%d, got %d", ErrInvalidConfig, MaxMetadataConcurrency, c.MetadataConcurrency)
	}
	if c.RateLimitRPS < 1 {
		return fmt.Errorf("%w: rate limit must be at least 1 rps, got %d", ErrInvalidConfig, c.RateLimitRPS)
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("%w: max retries must be 0-%d, got %d", ErrInvalidConfig, MaxRetriesLimit, c.MaxRetries)
	}
	return nil
}

// RequireAPIKey reports an error when no indexing API key is configured.
// Commands that query balances call it; "version" and similar do not.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.AlchemyAPIKey) == "" {
		return fmt.Errorf("%w: TOKENIDX_ALCHEMY_API_KEY is required", ErrInvalidConfig)
	}
	return nil
}

// IndexerEndpoint returns the full Alchemy JSON-RPC URL including the API key.
func (c *Config) IndexerEndpoint() string {
	return strings.TrimRight(c.AlchemyURL, "/") + "/" + c.AlchemyAPIKey
}

// NameServiceEndpoint returns the Ethereum JSON-RPC URL used for ENS lookups.
func (c *Config) NameServiceEndpoint() string {
	if c.EthRPCURL != "" {
		return c.EthRPCURL
	}
	return c.IndexerEndpoint()
}
