// Package executor coordinates one detection cycle at a time: sample prices,
// detect divergence, simulate the route, and hand approved trades to the
// relay. A non-blocking try-lock guarantees at most one active cycle; late
// triggers are dropped, never queued.
package executor

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/michaelpento.lv/arbbot/audit"
	"github.com/michaelpento.lv/arbbot/detector"
	"github.com/michaelpento.lv/arbbot/pricefeed"
	"github.com/michaelpento.lv/arbbot/simulator"
	"github.com/michaelpento.lv/arbbot/types"
	"github.com/michaelpento.lv/arbbot/utils/metrics"

	"go.uber.org/zap"
)

// State of the coordinator's cycle state machine.
type State int32

const (
	Idle State = iota
	Evaluating
	Simulating
	Executing
)

func (s State) String() string {
	switch s {
	case Evaluating:
		return "evaluating"
	case Simulating:
		return "simulating"
	case Executing:
		return "executing"
	default:
		return "idle"
	}
}

// Sampler produces one consistent price snapshot per cycle.
type Sampler interface {
	SamplePrices(ctx context.Context) (map[string]*types.PriceSample, []*pricefeed.FetchError)
}

// RouteSimulator sizes and evaluates a candidate route.
type RouteSimulator interface {
	Simulate(ctx context.Context, route *types.Route, fundingAmount *big.Int, slippageBps int64, minProfit *big.Int) (*types.SimulationResult, error)
}

// Trader submits an approved trade and reconciles its outcome.
type Trader interface {
	Execute(ctx context.Context, opp *types.Opportunity, sim *types.SimulationResult) (*types.ExecutionRecord, error)
}

// Config carries the coordinator's trading policy.
type Config struct {
	ThresholdBps int64
	SlippageBps  int64
	MinProfit    *big.Int
}

// Coordinator runs the detect-simulate-execute pipeline under a single-flight
// guard. All per-cycle data is cycle-scoped; the guard is the only state that
// survives across cycles.
type Coordinator struct {
	cfg      Config
	sampler  Sampler
	detector *detector.Detector
	sim      RouteSimulator
	trader   Trader
	audit    *audit.Log
	metrics  *metrics.CycleMetrics
	logger   *zap.Logger

	busy  atomic.Bool
	state atomic.Int32
}

// NewCoordinator wires the pipeline stages together.
func NewCoordinator(cfg Config, sampler Sampler, det *detector.Detector, sim RouteSimulator, trader Trader, auditLog *audit.Log, m *metrics.CycleMetrics, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		sampler:  sampler,
		detector: det,
		sim:      sim,
		trader:   trader,
		audit:    auditLog,
		metrics:  m,
		logger:   logger,
	}
}

// State returns the current cycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// TryCycle runs one full cycle if none is active. block is the chain height
// of the swap that triggered it, recorded in the cycle's audit entry. A busy
// coordinator drops the trigger immediately and returns types.ErrBusy; the
// caller must not block or retry. The guard is released on every exit path.
func (c *Coordinator) TryCycle(ctx context.Context, block uint64) error {
	if !c.busy.CompareAndSwap(false, true) {
		if c.metrics != nil {
			c.metrics.TriggersDropped.Inc()
		}
		return types.ErrBusy
	}
	defer func() {
		c.setState(Idle)
		c.busy.Store(false)
	}()

	started := time.Now()
	err := c.runCycle(ctx, block)
	if c.metrics != nil {
		c.metrics.CycleLatency.Observe(time.Since(started).Seconds())
	}
	return err
}

func (c *Coordinator) runCycle(ctx context.Context, block uint64) error {
	c.setState(Evaluating)

	samples, fetchErrs := c.sampler.SamplePrices(ctx)
	rec := &audit.CycleRecord{Block: block, Prices: priceStrings(samples)}

	if len(samples) < 2 {
		rec.Outcome = "error"
		rec.Reason = types.ErrInsufficientVenues.Error()
		c.finish(rec)
		c.logger.Warn("cycle aborted",
			zap.Int("valid_venues", len(samples)),
			zap.Int("fetch_errors", len(fetchErrs)))
		return types.ErrInsufficientVenues
	}

	opp := c.detector.Detect(samples, c.cfg.ThresholdBps)
	if opp == nil {
		rec.Outcome = "no-opportunity"
		c.finish(rec)
		return nil
	}

	rec.DeltaBps = opp.DeltaBps.StringFixed(2)
	rec.BuyVenue = opp.BuyVenue
	rec.SellVenue = opp.SellVenue
	if c.metrics != nil {
		delta, _ := opp.DeltaBps.Float64()
		c.metrics.DeltaBps.Observe(delta)
	}

	c.setState(Simulating)

	amount, err := simulator.SizeTrade(opp.Route, samples)
	if err != nil {
		rec.Outcome = "error"
		rec.Reason = err.Error()
		c.finish(rec)
		return err
	}

	sim, err := c.sim.Simulate(ctx, opp.Route, amount, c.cfg.SlippageBps, c.cfg.MinProfit)
	if err != nil {
		rec.Outcome = "error"
		rec.Reason = err.Error()
		c.finish(rec)
		return err
	}

	fillSimRecord(rec, sim)

	if !sim.Pass {
		rec.Outcome = "rejected"
		rec.Reason = string(sim.Reason)
		if c.metrics != nil {
			c.metrics.SimRejections.WithLabelValues(string(sim.Reason)).Inc()
		}
		c.finish(rec)
		return nil
	}

	c.setState(Executing)

	exec, err := c.trader.Execute(ctx, opp, sim)
	if err != nil {
		rec.Outcome = "error"
		rec.Reason = err.Error()
		c.finish(rec)
		c.logger.Error("trade submission failed", zap.Error(err))
		return err
	}

	rec.Outcome = "executed"
	rec.Execution = audit.FromExecution(exec)
	if c.metrics != nil {
		c.metrics.BundlesTotal.WithLabelValues(string(exec.Status)).Inc()
		if exec.Status == types.StatusIncluded && exec.Net != nil && exec.Net.Sign() > 0 {
			net, _ := new(big.Float).SetInt(exec.Net).Float64()
			c.metrics.RealizedProfit.Add(net)
		}
	}
	c.finish(rec)

	// A revert is the sole real-loss path: the flash loan unwinds the swaps
	// but the gas is spent.
	if exec.Status == types.StatusReverted {
		c.logger.Error("settlement contract reverted, gas lost",
			zap.String("bundle", exec.BundleID),
			zap.Uint64("target_block", exec.TargetBlock))
	}

	return nil
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Coordinator) finish(rec *audit.CycleRecord) {
	c.audit.Append(rec)
	if c.metrics != nil {
		c.metrics.CyclesTotal.WithLabelValues(rec.Outcome).Inc()
	}
}

func fillSimRecord(rec *audit.CycleRecord, sim *types.SimulationResult) {
	rec.AmountIn = sim.AmountIn.String()
	if sim.AmountOut != nil {
		rec.AmountOut = sim.AmountOut.String()
	}
	if sim.GasCost != nil {
		rec.GasCost = sim.GasCost.String()
	}
	if sim.NetProfit != nil {
		rec.NetProfit = sim.NetProfit.String()
	}
	for _, leg := range sim.LegAmounts {
		rec.LegAmounts = append(rec.LegAmounts, audit.LegRecord{
			Venue:     leg.Venue,
			Direction: leg.Direction.String(),
			AmountIn:  leg.AmountIn.String(),
			AmountOut: leg.AmountOut.String(),
		})
	}
}

func priceStrings(samples map[string]*types.PriceSample) map[string]string {
	out := make(map[string]string, len(samples))
	for name, s := range samples {
		out[name] = s.Price.StringFixed(8)
	}
	return out
}
