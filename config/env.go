package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCURL           = "KEEPER_RPC_URL"
	EnvChainID          = "KEEPER_CHAIN_ID"
	EnvExecutorAddress  = "KEEPER_EXECUTOR_ADDRESS"
	EnvPollInterval     = "KEEPER_POLL_INTERVAL"
	EnvMinSpreadPercent = "KEEPER_MIN_SPREAD_PERCENT"
	EnvMinProfit        = "KEEPER_MIN_PROFIT"
	EnvMaxGasPriceGwei  = "KEEPER_MAX_GAS_PRICE_GWEI"
	EnvMaxGasLimit      = "KEEPER_MAX_GAS_LIMIT"
	EnvPrivateKey       = "KEEPER_PRIVATE_KEY"
	EnvRelaySignerKey   = "RELAY_SIGNER_KEY"
	EnvRelayURL         = "RELAY_URL"
)

// LoadEnv loads environment variables from .env files. A missing file is not an error.
func LoadEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
