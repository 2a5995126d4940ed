package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestLoadSecrets(t *testing.T) {
	t.Setenv(EnvPrivateKey, testKeyHex)
	t.Setenv(EnvRelaySigningKey, "0x"+testKeyHex) // 0x prefix is accepted

	secrets, err := LoadSecrets()
	require.NoError(t, err)

	want, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(want.PublicKey),
		crypto.PubkeyToAddress(secrets.PrivateKey.PublicKey))
	assert.Equal(t, crypto.PubkeyToAddress(want.PublicKey),
		crypto.PubkeyToAddress(secrets.RelaySigningKey.PublicKey))
}

func TestLoadSecretsMissingKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")
	t.Setenv(EnvRelaySigningKey, testKeyHex)

	_, err := LoadSecrets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvPrivateKey)
}

func TestLoadSecretsInvalidKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, "not-hex")
	t.Setenv(EnvRelaySigningKey, testKeyHex)

	_, err := LoadSecrets()
	assert.Error(t, err)
}

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("ARBBOT_TEST_VAR", "set")
	assert.Equal(t, "set", GetEnvWithDefault("ARBBOT_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", GetEnvWithDefault("ARBBOT_TEST_UNSET", "fallback"))
}
