// Package gas estimates transaction gas cost under a configured price cap.
package gas

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Estimator derives the gas price used for cost accounting and submission.
// The observed network price is always clamped at the configured cap.
type Estimator struct {
	client *ethclient.Client
	cap    *big.Int
	logger *zap.Logger
}

// NewEstimator creates a gas estimator with the given price cap in wei.
func NewEstimator(client *ethclient.Client, priceCap *big.Int, logger *zap.Logger) *Estimator {
	return &Estimator{
		client: client,
		cap:    priceCap,
		logger: logger,
	}
}

// GasPrice returns min(observed network price, cap).
func (e *Estimator) GasPrice(ctx context.Context) (*big.Int, error) {
	observed, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return ClampPrice(observed, e.cap), nil
}

// EstimateCost returns gasLimit x GasPrice in wei.
func (e *Estimator) EstimateCost(ctx context.Context, gasLimit uint64) (*big.Int, error) {
	price, err := e.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit)), nil
}

// ClampPrice applies the cap to an observed gas price.
func ClampPrice(observed, cap *big.Int) *big.Int {
	if observed.Cmp(cap) > 0 {
		return new(big.Int).Set(cap)
	}
	return new(big.Int).Set(observed)
}

// ArbitrageGasLimit is a per-hop heuristic used to sanity-check the
// configured gas limit: 21k base plus swap execution, token transfers and
// storage reads per hop.
func ArbitrageGasLimit(numHops int) uint64 {
	const (
		baseCost   = uint64(21000)
		costPerHop = uint64(152000)
	)
	return baseCost + costPerHop*uint64(numHops)
}
