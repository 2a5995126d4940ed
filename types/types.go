package types

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token describes one leg of the settlement pair. Resolved once at startup
// from the pair's ERC-20 contracts and never mutated afterwards.
type Token struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
}

// Direction of a route leg relative to the funding token.
type Direction uint8

const (
	// Buy swaps funding token into the target token.
	Buy Direction = iota
	// Sell swaps the target token back into the funding token.
	Sell
)

func (d Direction) String() string {
	if d == Buy {
		return "buy"
	}
	return "sell"
}

// RouteLeg is one hop of an arbitrage route on a single venue.
type RouteLeg struct {
	Venue     string
	Direction Direction
}

// Route is an ordered sequence of buy/sell hops that starts and ends at the
// funding token. Immutable once constructed.
type Route struct {
	Legs []RouteLeg
}

// Closed reports whether the route returns to the funding token: an equal
// number of buy and sell legs with at least one of each.
func (r *Route) Closed() bool {
	if len(r.Legs) < 2 {
		return false
	}
	var buys, sells int
	for _, leg := range r.Legs {
		if leg.Direction == Buy {
			buys++
		} else {
			sells++
		}
	}
	return buys == sells
}

// PriceSample is one venue's reserve snapshot with the derived,
// order-normalized price. Created fresh each cycle and discarded at cycle end.
type PriceSample struct {
	Venue     string
	Reserve0  *big.Int // funding-token reserve
	Reserve1  *big.Int // target-token reserve
	Price     decimal.Decimal
	Block     uint64
	SampledAt time.Time
}

// Opportunity is a detected price divergence with the route that exploits it.
type Opportunity struct {
	Route        *Route
	DeltaBps     decimal.Decimal
	ThresholdBps int64
	BuyVenue     string
	SellVenue    string
}

// RejectReason identifies why the simulator refused a route.
type RejectReason string

const (
	ReasonNone               RejectReason = ""
	ReasonQuoteError         RejectReason = "QuoteError"
	ReasonSlippageExceeded   RejectReason = "SlippageExceeded"
	ReasonInsufficientProfit RejectReason = "InsufficientProfit"
)

// LegAmount records one leg's quoted output for the audit trail.
type LegAmount struct {
	Venue     string
	Direction Direction
	AmountIn  *big.Int
	AmountOut *big.Int
}

// SimulationResult is the simulator's verdict on a single route.
type SimulationResult struct {
	AmountIn   *big.Int
	AmountOut  *big.Int
	LegAmounts []LegAmount
	GasCost    *big.Int // in funding-token terms
	NetProfit  *big.Int
	Pass       bool
	Reason     RejectReason
}

// InclusionStatus is the terminal outcome of a submitted bundle.
type InclusionStatus string

const (
	StatusIncluded    InclusionStatus = "included"
	StatusNotIncluded InclusionStatus = "not-included"
	StatusReverted    InclusionStatus = "reverted"
)

// Balances is a funding-token / native-asset balance pair.
type Balances struct {
	Funding *big.Int
	Native  *big.Int
}

// ExecutionRecord is the immutable audit entry emitted after a trade
// submission settles one way or the other.
type ExecutionRecord struct {
	BundleID    string
	TargetBlock uint64
	Status      InclusionStatus
	Before      Balances
	After       Balances
	Net         *big.Int // realized funding-token gain/loss
	RecordedAt  time.Time
}

// Sentinel errors shared across pipeline stages.
var (
	// ErrBusy is returned when a trigger arrives while a cycle is active.
	ErrBusy = errors.New("cycle already in flight")
	// ErrInsufficientVenues is returned when fewer than two venues produced
	// a valid price sample.
	ErrInsufficientVenues = errors.New("fewer than two venues with valid samples")
)
