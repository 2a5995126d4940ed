package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
)

// Environment variables holding credentials. These never appear in the JSON
// config file.
const (
	EnvPrivateKey      = "PRIVATE_KEY"
	EnvRelaySigningKey = "RELAY_SIGNING_KEY"
	EnvRPCAPIKey       = "RPC_API_KEY"
)

// Secrets carries the signing material loaded at startup. A missing key here
// is the one fatal configuration error.
type Secrets struct {
	PrivateKey      *ecdsa.PrivateKey
	RelaySigningKey *ecdsa.PrivateKey
}

// LoadEnv loads environment variables from a .env file if present.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadSecrets parses the signing keys from the environment.
func LoadSecrets() (*Secrets, error) {
	pk, err := parseKey(EnvPrivateKey)
	if err != nil {
		return nil, err
	}

	relayKey, err := parseKey(EnvRelaySigningKey)
	if err != nil {
		return nil, err
	}

	return &Secrets{PrivateKey: pk, RelaySigningKey: relayKey}, nil
}

func parseKey(envVar string) (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(os.Getenv(envVar), "0x")
	if raw == "" {
		return nil, fmt.Errorf("%s must be set", envVar)
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envVar, err)
	}
	return key, nil
}

// GetEnvWithDefault gets an environment variable with a default value.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
