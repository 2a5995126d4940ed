// Package simulator sizes a candidate route against pool depth, chains
// quotes through every leg, and decides whether executing it nets a profit
// after slippage tolerance and gas cost.
package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var bpsScale = big.NewInt(10000)

// GasEstimator supplies the capped wei cost of executing the trade.
type GasEstimator interface {
	EstimateCost(ctx context.Context, gasLimit uint64) (*big.Int, error)
}

// Simulator evaluates routes for the fixed settlement pair.
type Simulator struct {
	venues       map[string]dex.Venue
	fundingToken common.Address
	targetToken  common.Address
	gas          GasEstimator
	gasLimit     uint64
	// nativeToFunding converts wei gas cost into funding-token terms.
	// Exactly 1 when the funding token is the wrapped native asset.
	nativeToFunding decimal.Decimal
	logger          *zap.Logger
}

// NewSimulator creates a simulator over the given venues.
func NewSimulator(venues map[string]dex.Venue, fundingToken, targetToken common.Address, gasEst GasEstimator, gasLimit uint64, nativeToFunding decimal.Decimal, logger *zap.Logger) *Simulator {
	return &Simulator{
		venues:          venues,
		fundingToken:    fundingToken,
		targetToken:     targetToken,
		gas:             gasEst,
		gasLimit:        gasLimit,
		nativeToFunding: nativeToFunding,
		logger:          logger,
	}
}

// SizeTrade derives the funding amount from available liquidity. The
// two-venue route takes half of the smaller outermost funding reserve; the
// cyclic route takes a liquidity-weighted average of per-leg loan amounts
// (a tenth of each pool's funding reserve, weighted by that reserve), keeping
// the trade small relative to pool depth.
func SizeTrade(route *types.Route, samples map[string]*types.PriceSample) (*big.Int, error) {
	if len(route.Legs) < 2 {
		return nil, fmt.Errorf("route must have at least 2 legs")
	}

	for _, leg := range route.Legs {
		if _, ok := samples[leg.Venue]; !ok {
			return nil, fmt.Errorf("no sample for venue %s", leg.Venue)
		}
	}

	if len(route.Legs) == 2 {
		first := samples[route.Legs[0].Venue].Reserve0
		last := samples[route.Legs[len(route.Legs)-1].Venue].Reserve0
		smaller := first
		if last.Cmp(first) < 0 {
			smaller = last
		}
		return new(big.Int).Div(smaller, big.NewInt(2)), nil
	}

	totalLiquidity := new(big.Int)
	weighted := new(big.Int)
	for _, leg := range route.Legs {
		reserve := samples[leg.Venue].Reserve0
		loan := new(big.Int).Div(reserve, big.NewInt(10))
		totalLiquidity.Add(totalLiquidity, reserve)
		weighted.Add(weighted, new(big.Int).Mul(loan, reserve))
	}
	if totalLiquidity.Sign() <= 0 {
		return nil, fmt.Errorf("no liquidity across route legs")
	}

	return weighted.Div(weighted, totalLiquidity), nil
}

// Simulate chains a quote through every route leg and applies the slippage
// and profitability policy. Quote failures reject the route rather than
// erroring the cycle. Every intermediate leg amount is reported for audit.
func (s *Simulator) Simulate(ctx context.Context, route *types.Route, fundingAmount *big.Int, slippageBps int64, minProfit *big.Int) (*types.SimulationResult, error) {
	if fundingAmount == nil || fundingAmount.Sign() <= 0 {
		return nil, fmt.Errorf("funding amount must be positive")
	}

	result := &types.SimulationResult{
		AmountIn:   new(big.Int).Set(fundingAmount),
		LegAmounts: make([]types.LegAmount, 0, len(route.Legs)),
	}

	amount := new(big.Int).Set(fundingAmount)
	for i, leg := range route.Legs {
		venue, ok := s.venues[leg.Venue]
		if !ok {
			return nil, fmt.Errorf("unknown venue %s", leg.Venue)
		}

		amounts, err := venue.QuoteOut(ctx, amount, s.legPath(leg.Direction))
		if err != nil {
			s.logger.Warn("leg quote failed",
				zap.String("venue", leg.Venue),
				zap.Int("leg", i),
				zap.Error(err))
			result.Pass = false
			result.Reason = types.ReasonQuoteError
			return result, nil
		}

		out := amounts[len(amounts)-1]
		result.LegAmounts = append(result.LegAmounts, types.LegAmount{
			Venue:     leg.Venue,
			Direction: leg.Direction,
			AmountIn:  new(big.Int).Set(amount),
			AmountOut: new(big.Int).Set(out),
		})
		amount = out
	}
	result.AmountOut = amount

	// Slippage floor: fundingAmount x (1 - slippageBps/10000).
	floor := new(big.Int).Mul(fundingAmount, big.NewInt(10000-slippageBps))
	floor.Div(floor, bpsScale)
	if amount.Cmp(floor) < 0 {
		result.Pass = false
		result.Reason = types.ReasonSlippageExceeded
		return result, nil
	}

	gasCost, err := s.gasCost(ctx)
	if err != nil {
		return nil, err
	}
	result.GasCost = gasCost

	net := new(big.Int).Sub(amount, fundingAmount)
	net.Sub(net, gasCost)
	result.NetProfit = net

	if net.Cmp(minProfit) <= 0 {
		result.Pass = false
		result.Reason = types.ReasonInsufficientProfit
		return result, nil
	}

	result.Pass = true
	result.Reason = types.ReasonNone
	return result, nil
}

// gasCost is the estimator's capped wei cost converted to funding-token
// terms.
func (s *Simulator) gasCost(ctx context.Context) (*big.Int, error) {
	costWei, err := s.gas.EstimateCost(ctx, s.gasLimit)
	if err != nil {
		return nil, err
	}

	if s.nativeToFunding.Equal(decimal.NewFromInt(1)) {
		return costWei, nil
	}

	converted := decimal.NewFromBigInt(costWei, 0).Mul(s.nativeToFunding)
	// Round up: never understate cost when deciding whether to trade.
	return converted.Ceil().BigInt(), nil
}

// legPath is the swap path for one leg relative to the funding token.
func (s *Simulator) legPath(dir types.Direction) []common.Address {
	if dir == types.Buy {
		return []common.Address{s.fundingToken, s.targetToken}
	}
	return []common.Address{s.targetToken, s.fundingToken}
}
