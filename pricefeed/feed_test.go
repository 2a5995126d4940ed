package pricefeed

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/michaelpento.lv/arbbot/dex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	fundingAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	targetAddr  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type stubVenue struct {
	name     string
	reserve0 *big.Int
	reserve1 *big.Int
	token0   common.Address
	err      error
}

func (v *stubVenue) Name() string { return v.name }

func (v *stubVenue) GetReserves(ctx context.Context) (*dex.Reserves, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &dex.Reserves{Reserve0: v.reserve0, Reserve1: v.reserve1, BlockNumber: 123}, nil
}

func (v *stubVenue) PairToken0(ctx context.Context) (common.Address, error) {
	return v.token0, nil
}

func (v *stubVenue) QuoteOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	return nil, fmt.Errorf("not implemented")
}

func (v *stubVenue) QuoteIn(ctx context.Context, amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	return nil, fmt.Errorf("not implemented")
}

func TestSamplePricesNormalizesTokenOrder(t *testing.T) {
	// Both venues hold identical liquidity but store the pair in opposite
	// token order. The derived price must be identical.
	feed := NewFeed([]dex.Venue{
		&stubVenue{name: "straight", reserve0: big.NewInt(2000), reserve1: big.NewInt(1000), token0: fundingAddr},
		&stubVenue{name: "flipped", reserve0: big.NewInt(1000), reserve1: big.NewInt(2000), token0: targetAddr},
	}, fundingAddr, zap.NewNop())

	samples, errs := feed.SamplePrices(context.Background())
	require.Empty(t, errs)
	require.Len(t, samples, 2)

	assert.True(t, samples["straight"].Price.Equal(samples["flipped"].Price))
	assert.True(t, samples["straight"].Price.Equal(decimal.RequireFromString("0.5")))

	// Reserves are re-oriented funding-first on both venues.
	assert.Equal(t, big.NewInt(2000), samples["flipped"].Reserve0)
	assert.Equal(t, big.NewInt(1000), samples["flipped"].Reserve1)
}

func TestSamplePricesIsolatesVenueFailure(t *testing.T) {
	feed := NewFeed([]dex.Venue{
		&stubVenue{name: "good", reserve0: big.NewInt(100), reserve1: big.NewInt(100), token0: fundingAddr},
		&stubVenue{name: "bad", err: fmt.Errorf("connection refused")},
	}, fundingAddr, zap.NewNop())

	samples, errs := feed.SamplePrices(context.Background())

	require.Len(t, samples, 1)
	assert.Contains(t, samples, "good")

	require.Len(t, errs, 1)
	assert.Equal(t, "bad", errs[0].Venue)
	assert.ErrorContains(t, errs[0], "connection refused")
}

func TestSamplePricesRejectsEmptyReserves(t *testing.T) {
	feed := NewFeed([]dex.Venue{
		&stubVenue{name: "drained", reserve0: big.NewInt(0), reserve1: big.NewInt(100), token0: fundingAddr},
	}, fundingAddr, zap.NewNop())

	samples, errs := feed.SamplePrices(context.Background())
	assert.Empty(t, samples)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "empty reserves")
}

func TestNormalizedPrice(t *testing.T) {
	price := NormalizedPrice(big.NewInt(4000), big.NewInt(1000))
	assert.True(t, price.Equal(decimal.RequireFromString("0.25")))
}
