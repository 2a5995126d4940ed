// Package univ2 implements the dex.Venue capability for Uniswap-V2-style
// constant-product exchanges. Venues differ only in factory and router
// addresses; swap fee is the canonical 30 bps (997/1000).
package univ2

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/michaelpento.lv/arbbot/dex"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru"
)

const pairCacheSize = 64

// Venue is one configured constant-product exchange.
type Venue struct {
	client  *ethclient.Client
	name    string
	factory common.Address
	router  common.Address

	factoryContract *bind.BoundContract
	pairs           *lru.Cache // pair address -> *Pair

	// settlement pair legs in funding-first order
	tokenA   common.Address
	tokenB   common.Address
	pairAddr common.Address
}

// NewVenue creates a venue backed by the given factory and router.
func NewVenue(client *ethclient.Client, name string, factory, router common.Address) (*Venue, error) {
	factoryABI, err := abi.JSON(strings.NewReader(factoryABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}

	cache, err := lru.New(pairCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pair cache: %w", err)
	}

	return &Venue{
		client:          client,
		name:            name,
		factory:         factory,
		router:          router,
		factoryContract: bind.NewBoundContract(factory, factoryABI, client, client, client),
		pairs:           cache,
	}, nil
}

// SetPair pins the settlement pair tokens this venue trades. Must be called
// once before any read.
func (v *Venue) SetPair(tokenA, tokenB common.Address) {
	v.tokenA, v.tokenB = tokenA, tokenB
}

// Name returns the venue's configured name.
func (v *Venue) Name() string {
	return v.name
}

// GetRouterAddress returns the router contract address.
func (v *Venue) GetRouterAddress() common.Address {
	return v.router
}

// GetReserves returns the settlement pair's reserves in contract order.
func (v *Venue) GetReserves(ctx context.Context) (*dex.Reserves, error) {
	pair, err := v.getPair(ctx)
	if err != nil {
		return nil, err
	}

	opts := &bind.CallOpts{Context: ctx}
	reserve0, reserve1, err := pair.GetReserves(opts)
	if err != nil {
		return nil, err
	}

	block, err := v.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	return &dex.Reserves{
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		BlockNumber: block,
	}, nil
}

// PairToken0 returns the address the pair contract stores as token0.
func (v *Venue) PairToken0(ctx context.Context) (common.Address, error) {
	pair, err := v.getPair(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return pair.Token0(&bind.CallOpts{Context: ctx})
}

// QuoteOut chains the constant-product quote through path, returning every
// intermediate amount; result[0] == amountIn.
func (v *Venue) QuoteOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("path must contain at least 2 tokens")
	}

	amounts := make([]*big.Int, len(path))
	amounts[0] = amountIn
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := v.orderedReserves(ctx, path[i])
		if err != nil {
			return nil, fmt.Errorf("failed to get reserves at hop %d: %w", i, err)
		}
		amounts[i+1] = AmountOut(amounts[i], reserveIn, reserveOut)
		if amounts[i+1].Sign() == 0 {
			return nil, fmt.Errorf("insufficient liquidity at hop %d", i)
		}
	}

	return amounts, nil
}

// QuoteIn chains the inverse quote through path in reverse, returning every
// intermediate amount; result[len-1] == amountOut.
func (v *Venue) QuoteIn(ctx context.Context, amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("path must contain at least 2 tokens")
	}

	amounts := make([]*big.Int, len(path))
	amounts[len(amounts)-1] = amountOut
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := v.orderedReserves(ctx, path[i-1])
		if err != nil {
			return nil, fmt.Errorf("failed to get reserves at hop %d: %w", i-1, err)
		}
		if reserveOut.Cmp(amounts[i]) <= 0 {
			return nil, fmt.Errorf("insufficient liquidity at hop %d", i-1)
		}
		amounts[i-1] = AmountIn(amounts[i], reserveIn, reserveOut)
	}

	return amounts, nil
}

// orderedReserves returns the pair reserves oriented so the first value is
// the reserve of tokenIn.
func (v *Venue) orderedReserves(ctx context.Context, tokenIn common.Address) (*big.Int, *big.Int, error) {
	pair, err := v.getPair(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := &bind.CallOpts{Context: ctx}
	reserve0, reserve1, err := pair.GetReserves(opts)
	if err != nil {
		return nil, nil, err
	}

	token0, err := pair.Token0(opts)
	if err != nil {
		return nil, nil, err
	}

	if tokenIn == token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// getPair resolves the settlement pair through the factory, caching the
// binding once resolved.
func (v *Venue) getPair(ctx context.Context) (*Pair, error) {
	addr, err := v.pairAddress(ctx)
	if err != nil {
		return nil, err
	}

	if cached, ok := v.pairs.Get(addr); ok {
		return cached.(*Pair), nil
	}

	pair, err := NewPair(addr, v.client)
	if err != nil {
		return nil, fmt.Errorf("failed to bind pair contract: %w", err)
	}

	v.pairs.Add(addr, pair)
	return pair, nil
}

// PairAddress resolves the settlement pair contract address on this venue.
func (v *Venue) PairAddress(ctx context.Context) (common.Address, error) {
	return v.pairAddress(ctx)
}

func (v *Venue) pairAddress(ctx context.Context) (common.Address, error) {
	if v.pairAddr != (common.Address{}) {
		return v.pairAddr, nil
	}

	var out []interface{}
	err := v.factoryContract.Call(&bind.CallOpts{Context: ctx}, &out, "getPair", v.tokenA, v.tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("factory getPair failed: %w", err)
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to parse pair address")
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no pair deployed on %s", v.name)
	}

	v.pairAddr = addr
	return addr, nil
}

// AmountOut is the V2 constant-product quote with the 30 bps fee, floored.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	denominator.Add(denominator, amountInWithFee)

	return new(big.Int).Div(numerator, denominator)
}

// AmountIn is the inverse quote, rounded up so the swap cannot under-fund.
func AmountIn(amountOut, reserveIn, reserveOut *big.Int) *big.Int {
	if amountOut.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}

	numerator := new(big.Int).Mul(new(big.Int).Mul(reserveIn, amountOut), big.NewInt(1000))
	denominator := new(big.Int).Mul(new(big.Int).Sub(reserveOut, amountOut), big.NewInt(997))
	if denominator.Sign() <= 0 {
		return big.NewInt(0)
	}

	amountIn := new(big.Int).Div(numerator, denominator)
	return amountIn.Add(amountIn, big.NewInt(1))
}
