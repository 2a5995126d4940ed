package gas

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPrice(t *testing.T) {
	cap := big.NewInt(100)

	assert.Equal(t, big.NewInt(50), ClampPrice(big.NewInt(50), cap))
	assert.Equal(t, big.NewInt(100), ClampPrice(big.NewInt(100), cap))
	// A spiking network price never pushes submission above the cap.
	assert.Equal(t, big.NewInt(100), ClampPrice(big.NewInt(500), cap))
}

func TestClampPriceDoesNotAliasInputs(t *testing.T) {
	observed, cap := big.NewInt(500), big.NewInt(100)
	clamped := ClampPrice(observed, cap)

	clamped.SetInt64(1)
	assert.Equal(t, big.NewInt(100), cap)
	assert.Equal(t, big.NewInt(500), observed)
}

func TestArbitrageGasLimit(t *testing.T) {
	assert.Equal(t, uint64(325000), ArbitrageGasLimit(2))
	assert.Equal(t, uint64(629000), ArbitrageGasLimit(4))
	assert.True(t, ArbitrageGasLimit(4) > ArbitrageGasLimit(2))
}
