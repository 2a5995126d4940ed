package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Venue represents one decentralized exchange trading the settlement pair.
type Venue interface {
	// Name returns the venue's configured name.
	Name() string

	// GetReserves returns the current reserves of the settlement pair,
	// reported in the pair contract's own token order.
	GetReserves(ctx context.Context) (*Reserves, error)

	// PairToken0 returns the address the pair contract stores as token0.
	PairToken0(ctx context.Context) (common.Address, error)

	// QuoteOut returns the chained output amounts for swapping amountIn
	// along path; result[0] == amountIn.
	QuoteOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)

	// QuoteIn returns the chained input amounts required to receive
	// amountOut along path; result[len-1] == amountOut.
	QuoteIn(ctx context.Context, amountOut *big.Int, path []common.Address) ([]*big.Int, error)
}

// Reserves represents token pair reserves at a block.
type Reserves struct {
	Reserve0    *big.Int
	Reserve1    *big.Int
	BlockNumber uint64
}
