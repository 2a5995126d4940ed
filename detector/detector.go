// Package detector compares venue prices and proposes an arbitrage route.
package detector

import (
	"github.com/michaelpento.lv/arbbot/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var bpsScale = decimal.NewFromInt(10000)

// Detector selects the widest price divergence across the configured venues.
// venueOrder fixes both the cyclic route order and the deterministic
// tie-break between equal-magnitude deltas.
type Detector struct {
	venueOrder []string
	logger     *zap.Logger
}

// NewDetector creates a detector over the venues in configuration order.
func NewDetector(venueOrder []string, logger *zap.Logger) *Detector {
	return &Detector{
		venueOrder: venueOrder,
		logger:     logger,
	}
}

// Detect computes the signed delta (priceA-priceB)/priceB for every unordered
// venue pair present in samples, selects the largest magnitude, and returns
// the route that buys the cheaper venue and sells the pricier one. A delta
// exactly at thresholdBps triggers. Returns nil when no pair clears the
// threshold or fewer than two venues have samples.
func (d *Detector) Detect(samples map[string]*types.PriceSample, thresholdBps int64) *types.Opportunity {
	ordered := d.sampledVenues(samples)
	if len(ordered) < 2 {
		return nil
	}

	var (
		best        decimal.Decimal
		bestA, bestB string
	)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			a, b := samples[ordered[i]], samples[ordered[j]]
			delta := deltaBps(a.Price, b.Price)
			// Strictly-greater comparison keeps the first configured
			// pair on ties.
			if bestA == "" || delta.Abs().GreaterThan(best.Abs()) {
				best, bestA, bestB = delta, ordered[i], ordered[j]
			}
		}
	}

	threshold := decimal.NewFromInt(thresholdBps)
	if best.Abs().LessThan(threshold) {
		d.logger.Debug("no divergence above threshold",
			zap.String("best_delta_bps", best.StringFixed(2)),
			zap.Int64("threshold_bps", thresholdBps))
		return nil
	}

	// Positive delta means venue A is pricier: buy B, sell A.
	buy, sell := bestB, bestA
	if best.Sign() < 0 {
		buy, sell = bestA, bestB
	}

	route := d.buildRoute(ordered, buy, sell)

	d.logger.Info("opportunity detected",
		zap.String("buy", buy),
		zap.String("sell", sell),
		zap.String("delta_bps", best.Abs().StringFixed(2)),
		zap.Int64("threshold_bps", thresholdBps),
		zap.Int("legs", len(route.Legs)))

	return &types.Opportunity{
		Route:        route,
		DeltaBps:     best.Abs(),
		ThresholdBps: thresholdBps,
		BuyVenue:     buy,
		SellVenue:    sell,
	}
}

// sampledVenues filters the configured order down to venues with a sample,
// preserving configuration order.
func (d *Detector) sampledVenues(samples map[string]*types.PriceSample) []string {
	ordered := make([]string, 0, len(samples))
	for _, name := range d.venueOrder {
		if _, ok := samples[name]; ok {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// buildRoute chains every sampled venue in fixed cyclic order starting at the
// buy venue, alternating buy/sell legs so the loop returns to the funding
// token. An odd venue count cannot close the loop that way, so it falls back
// to the plain two-venue route.
func (d *Detector) buildRoute(ordered []string, buy, sell string) *types.Route {
	if len(ordered) == 2 || len(ordered)%2 != 0 {
		return &types.Route{Legs: []types.RouteLeg{
			{Venue: buy, Direction: types.Buy},
			{Venue: sell, Direction: types.Sell},
		}}
	}

	start := 0
	for i, name := range ordered {
		if name == buy {
			start = i
			break
		}
	}

	legs := make([]types.RouteLeg, 0, len(ordered))
	for i := 0; i < len(ordered); i++ {
		venue := ordered[(start+i)%len(ordered)]
		dir := types.Buy
		if i%2 == 1 {
			dir = types.Sell
		}
		legs = append(legs, types.RouteLeg{Venue: venue, Direction: dir})
	}

	return &types.Route{Legs: legs}
}

// deltaBps is the signed percentage delta (a-b)/b expressed in basis points.
func deltaBps(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Div(b).Mul(bpsScale)
}
