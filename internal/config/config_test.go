package config

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Port:                8080,
		LogLevel:            "info",
		LogDir:              "./logs",
		Network:             "mainnet",
		AlchemyAPIKey:       "test-key",
		AlchemyURL:          "https://eth-mainnet.g.alchemy.com/v2",
		MetadataConcurrency: 8,
		RateLimitRPS:        10,
		MaxRetries:          2,
	}
}

func TestValidate_ValidMainnet(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_InvalidNetwork(t *testing.T) {
	tests := []struct {
		name    string
		network string
	}{
		{"empty", ""},
		{"testnet", "testnet"},
		{"Mainnet case sensitive", "Mainnet"},
		{"sepolia", "sepolia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Network = tt.network
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error for network=%q, got nil", tt.network)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero", 0},
		{"negative", -1},
		{"too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Port = tt.port
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error for port=%d, got nil", tt.port)
			}
		})
	}
}

func TestValidate_MetadataConcurrencyBounds(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"zero", 0, true},
		{"one", 1, false},
		{"max", MaxMetadataConcurrency, false},
		{"over max", MaxMetadataConcurrency + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.MetadataConcurrency = tt.value
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RetriesAndRate(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative retries")
	}

	cfg = validConfig()
	cfg.MaxRetries = MaxRetriesLimit + 1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for retries above limit")
	}

	cfg = validConfig()
	cfg.RateLimitRPS = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero rate limit")
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := validConfig()
	if err := cfg.RequireAPIKey(); err != nil {
		t.Fatalf("RequireAPIKey() error = %v", err)
	}

	cfg.AlchemyAPIKey = "   "
	if err := cfg.RequireAPIKey(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("RequireAPIKey() error = %v, want ErrInvalidConfig", err)
	}
}

func TestEndpoints(t *testing.T) {
	cfg := validConfig()
	cfg.AlchemyURL = "https://eth-mainnet.g.alchemy.com/v2/"

	want := "https://eth-mainnet.g.alchemy.com/v2/test-key"
	if got := cfg.IndexerEndpoint(); got != want {
		t.Errorf("IndexerEndpoint() = %q, want %q", got, want)
	}

	if got := cfg.NameServiceEndpoint(); got != want {
		t.Errorf("NameServiceEndpoint() without override = %q, want %q", got, want)
	}

	cfg.EthRPCURL = "http://127.0.0.1:8545"
	if got := cfg.NameServiceEndpoint(); got != "http://127.0.0.1:8545" {
		t.Errorf("NameServiceEndpoint() with override = %q", got)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TOKENIDX_PORT", "9090")
	t.Setenv("TOKENIDX_ALCHEMY_API_KEY", "abc")
	t.Setenv("TOKENIDX_METADATA_CONCURRENCY", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.MetadataConcurrency != 4 {
		t.Errorf("MetadataConcurrency = %d, want 4", cfg.MetadataConcurrency)
	}
	if cfg.Network != "mainnet" {
		t.Errorf("Network default = %q, want mainnet", cfg.Network)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries default = %d, want 2", cfg.MaxRetries)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("TOKENIDX_NETWORK", "testnet")

	if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}
