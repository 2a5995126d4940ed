// Package pricefeed reads reserves from every configured venue and derives a
// normalized price per venue. All venue reads for one cycle run concurrently
// and the result is treated as a single consistent snapshot.
package pricefeed

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetchError reports a failed venue read. Other venues' samples are
// unaffected.
type FetchError struct {
	Venue string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Venue, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Feed samples prices across venues for a fixed settlement pair.
type Feed struct {
	venues       []dex.Venue
	fundingToken common.Address
	logger       *zap.Logger
}

// NewFeed creates a price feed over the configured venues.
func NewFeed(venues []dex.Venue, fundingToken common.Address, logger *zap.Logger) *Feed {
	return &Feed{
		venues:       venues,
		fundingToken: fundingToken,
		logger:       logger,
	}
}

// SamplePrices reads reserves from every venue concurrently. A single venue
// failure is reported in errs and excluded from the snapshot; the caller
// decides whether enough venues remain. The returned map key is the venue
// name.
func (f *Feed) SamplePrices(ctx context.Context) (map[string]*types.PriceSample, []*FetchError) {
	var (
		mu      sync.Mutex
		samples = make(map[string]*types.PriceSample, len(f.venues))
		errs    []*FetchError
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, venue := range f.venues {
		venue := venue
		g.Go(func() error {
			sample, err := f.sampleVenue(gctx, venue)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &FetchError{Venue: venue.Name(), Err: err})
				return nil // one venue failing must not cancel the others
			}
			samples[venue.Name()] = sample
			return nil
		})
	}
	_ = g.Wait()

	for _, fe := range errs {
		f.logger.Warn("venue sample failed",
			zap.String("venue", fe.Venue),
			zap.Error(fe.Err))
	}

	return samples, errs
}

// sampleVenue reads one venue's reserves and derives the normalized price.
func (f *Feed) sampleVenue(ctx context.Context, venue dex.Venue) (*types.PriceSample, error) {
	reserves, err := venue.GetReserves(ctx)
	if err != nil {
		return nil, err
	}
	if reserves.Reserve0.Sign() <= 0 || reserves.Reserve1.Sign() <= 0 {
		return nil, fmt.Errorf("empty reserves")
	}

	token0, err := venue.PairToken0(ctx)
	if err != nil {
		return nil, err
	}

	fundingReserve, targetReserve := reserves.Reserve0, reserves.Reserve1
	if token0 != f.fundingToken {
		fundingReserve, targetReserve = reserves.Reserve1, reserves.Reserve0
	}

	return &types.PriceSample{
		Venue:     venue.Name(),
		Reserve0:  fundingReserve,
		Reserve1:  targetReserve,
		Price:     NormalizedPrice(fundingReserve, targetReserve),
		Block:     reserves.BlockNumber,
		SampledAt: time.Now(),
	}, nil
}

// NormalizedPrice derives price = targetReserve/fundingReserve, so every
// venue reports the same pair orientation regardless of its internal token
// order. Exact decimal arithmetic; no binary floats.
func NormalizedPrice(fundingReserve, targetReserve *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(targetReserve, 0).
		Div(decimal.NewFromBigInt(fundingReserve, 0))
}
