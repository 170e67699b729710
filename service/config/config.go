package config

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go/rpc"
)

// Config holds all application configuration loaded from environment variables.
// Required fields are validated at load so misconfiguration fails fast.
type Config struct {
	// Logging
	LogLevel string

	// Helius endpoint family. The API key is optional: without it the
	// discoverer only uses the public RPC source.
	HeliusAPIKey      string
	HeliusMainnetName string
	HeliusDevnetName  string

	// Public RPC endpoint family.
	SolanaMainnetRPCURL string
	SolanaDevnetRPCURL  string

	// Result cache. Empty means an in-process cache is used instead.
	DatabaseURL string

	// NATS configuration (discovery event publishing).
	NATSURL string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.HeliusAPIKey = os.Getenv("HELIUS_API_KEY")
	cfg.HeliusMainnetName = getEnvOrDefault("HELIUS_MAINNET_NAME", "mainnet")
	cfg.HeliusDevnetName = getEnvOrDefault("HELIUS_DEVNET_NAME", "devnet")

	cfg.SolanaMainnetRPCURL = getEnvOrDefault("SOLANA_MAINNET_RPC_URL", rpc.MainNetBeta_RPC)
	cfg.SolanaDevnetRPCURL = getEnvOrDefault("SOLANA_DEVNET_RPC_URL", rpc.DevNet_RPC)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// The two networks must never share an endpoint, otherwise a devnet
	// lookup would silently answer with mainnet history.
	if cfg.SolanaMainnetRPCURL == cfg.SolanaDevnetRPCURL {
		errs = append(errs, fmt.Errorf("SOLANA_MAINNET_RPC_URL and SOLANA_DEVNET_RPC_URL must be different"))
	}
	if cfg.HeliusMainnetName == cfg.HeliusDevnetName {
		errs = append(errs, fmt.Errorf("HELIUS_MAINNET_NAME and HELIUS_DEVNET_NAME must be different"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
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

// HeliusEndpoint returns the Helius RPC endpoint for the given network.
func (c *Config) HeliusEndpoint(mainnet bool) string {
	envName := c.HeliusDevnetName
	if mainnet {
		envName = c.HeliusMainnetName
	}
	return fmt.Sprintf("https://%s.helius-rpc.com/?api-key=%s", envName, c.HeliusAPIKey)
}

// RPCEndpoint returns the public RPC endpoint for the given network.
func (c *Config) RPCEndpoint(mainnet bool) string {
	if mainnet {
		return c.SolanaMainnetRPCURL
	}
	return c.SolanaDevnetRPCURL
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
