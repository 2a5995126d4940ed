package executor

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/michaelpento.lv/arbbot/audit"
	"github.com/michaelpento.lv/arbbot/detector"
	"github.com/michaelpento.lv/arbbot/pricefeed"
	"github.com/michaelpento.lv/arbbot/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSampler struct {
	samples map[string]*types.PriceSample
	errs    []*pricefeed.FetchError
	calls   atomic.Int32
	// gate, when set, blocks SamplePrices until released; started reports
	// that the blocking call has begun.
	gate    chan struct{}
	started chan struct{}
}

func (s *stubSampler) SamplePrices(ctx context.Context) (map[string]*types.PriceSample, []*pricefeed.FetchError) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	return s.samples, s.errs
}

type stubSimulator struct {
	result *types.SimulationResult
	err    error
}

func (s *stubSimulator) Simulate(ctx context.Context, route *types.Route, fundingAmount *big.Int, slippageBps int64, minProfit *big.Int) (*types.SimulationResult, error) {
	return s.result, s.err
}

type stubTrader struct {
	record *types.ExecutionRecord
	err    error
	calls  atomic.Int32
}

func (t *stubTrader) Execute(ctx context.Context, opp *types.Opportunity, sim *types.SimulationResult) (*types.ExecutionRecord, error) {
	t.calls.Add(1)
	return t.record, t.err
}

func divergentSamples() map[string]*types.PriceSample {
	return map[string]*types.PriceSample{
		"uni":   {Price: decimal.RequireFromString("0.95"), Reserve0: big.NewInt(1000)},
		"sushi": {Price: decimal.RequireFromString("1.00"), Reserve0: big.NewInt(1000)},
	}
}

func passingSim() *types.SimulationResult {
	return &types.SimulationResult{
		Pass:      true,
		Reason:    types.ReasonNone,
		AmountIn:  big.NewInt(500),
		AmountOut: big.NewInt(530),
		GasCost:   big.NewInt(10),
		NetProfit: big.NewInt(20),
	}
}

func newTestCoordinator(t *testing.T, sampler Sampler, sim RouteSimulator, trader Trader) *Coordinator {
	t.Helper()
	auditLog, err := audit.NewLog("", zap.NewNop())
	require.NoError(t, err)

	cfg := Config{ThresholdBps: 100, SlippageBps: 50, MinProfit: big.NewInt(0)}
	det := detector.NewDetector([]string{"uni", "sushi"}, zap.NewNop())
	return NewCoordinator(cfg, sampler, det, sim, trader, auditLog, nil, zap.NewNop())
}

func TestTryCycleSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	sampler := &stubSampler{
		samples: divergentSamples(),
		gate:    gate,
		started: make(chan struct{}, 1),
	}
	trader := &stubTrader{record: &types.ExecutionRecord{Status: types.StatusIncluded, Net: big.NewInt(20)}}
	c := newTestCoordinator(t, sampler, &stubSimulator{result: passingSim()}, trader)

	first := make(chan error, 1)
	go func() { first <- c.TryCycle(context.Background(), 1) }()

	// Wait until the first cycle holds the guard.
	<-sampler.started

	// Concurrent triggers while busy are all dropped.
	var wg sync.WaitGroup
	var dropped atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.TryCycle(context.Background(), 1); err == types.ErrBusy {
				dropped.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(8), dropped.Load())

	close(gate)
	require.NoError(t, <-first)

	// Exactly one cycle sampled and traded.
	assert.Equal(t, int32(1), sampler.calls.Load())
	assert.Equal(t, int32(1), trader.calls.Load())
	assert.Equal(t, Idle, c.State())
}

func TestTryCycleGuardReleasedAfterError(t *testing.T) {
	// One sampled venue aborts the cycle with an error.
	sampler := &stubSampler{samples: map[string]*types.PriceSample{
		"uni": {Price: decimal.RequireFromString("1.00"), Reserve0: big.NewInt(1000)},
	}}
	trader := &stubTrader{}
	c := newTestCoordinator(t, sampler, &stubSimulator{result: passingSim()}, trader)

	err := c.TryCycle(context.Background(), 1)
	assert.ErrorIs(t, err, types.ErrInsufficientVenues)
	assert.Equal(t, Idle, c.State())

	// The guard is free again: a second trigger runs.
	sampler.samples = divergentSamples()
	trader.record = &types.ExecutionRecord{Status: types.StatusIncluded, Net: big.NewInt(20)}
	require.NoError(t, c.TryCycle(context.Background(), 1))
	assert.Equal(t, int32(1), trader.calls.Load())
}

func TestTryCycleNoOpportunitySkipsTrader(t *testing.T) {
	// Equal prices on both venues: nothing to do.
	sampler := &stubSampler{samples: map[string]*types.PriceSample{
		"uni":   {Price: decimal.RequireFromString("1.00"), Reserve0: big.NewInt(1000)},
		"sushi": {Price: decimal.RequireFromString("1.00"), Reserve0: big.NewInt(1000)},
	}}
	trader := &stubTrader{}
	c := newTestCoordinator(t, sampler, &stubSimulator{result: passingSim()}, trader)

	require.NoError(t, c.TryCycle(context.Background(), 1))
	assert.Equal(t, int32(0), trader.calls.Load())
}

func TestTryCycleRejectedSimulationSkipsTrader(t *testing.T) {
	sampler := &stubSampler{samples: divergentSamples()}
	rejected := &types.SimulationResult{
		Pass:     false,
		Reason:   types.ReasonSlippageExceeded,
		AmountIn: big.NewInt(500),
	}
	trader := &stubTrader{}
	c := newTestCoordinator(t, sampler, &stubSimulator{result: rejected}, trader)

	require.NoError(t, c.TryCycle(context.Background(), 1))
	assert.Equal(t, int32(0), trader.calls.Load())
}

func TestTryCycleGuardReleasedAfterTraderError(t *testing.T) {
	sampler := &stubSampler{samples: divergentSamples()}
	trader := &stubTrader{err: context.DeadlineExceeded}
	c := newTestCoordinator(t, sampler, &stubSimulator{result: passingSim()}, trader)

	assert.Error(t, c.TryCycle(context.Background(), 1))
	assert.Equal(t, Idle, c.State())

	// Guard free: the next trigger is accepted, not ErrBusy.
	err := c.TryCycle(context.Background(), 1)
	assert.NotErrorIs(t, err, types.ErrBusy)
}

func TestTryCycleRecordsTriggerBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	auditLog, err := audit.NewLog(path, zap.NewNop())
	require.NoError(t, err)

	sampler := &stubSampler{samples: divergentSamples()}
	trader := &stubTrader{record: &types.ExecutionRecord{Status: types.StatusIncluded, Net: big.NewInt(20)}}
	cfg := Config{ThresholdBps: 100, SlippageBps: 50, MinProfit: big.NewInt(0)}
	det := detector.NewDetector([]string{"uni", "sushi"}, zap.NewNop())
	c := NewCoordinator(cfg, sampler, det, &stubSimulator{result: passingSim()}, trader, auditLog, nil, zap.NewNop())

	require.NoError(t, c.TryCycle(context.Background(), 777))
	require.NoError(t, auditLog.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec audit.CycleRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, uint64(777), rec.Block)
	assert.Equal(t, "executed", rec.Outcome)
}

func TestTryCycleRevertedBundleStillCompletes(t *testing.T) {
	sampler := &stubSampler{samples: divergentSamples()}
	trader := &stubTrader{record: &types.ExecutionRecord{
		Status: types.StatusReverted,
		Net:    big.NewInt(-10),
	}}
	c := newTestCoordinator(t, sampler, &stubSimulator{result: passingSim()}, trader)

	// A revert is an accounted outcome, not a cycle error.
	require.NoError(t, c.TryCycle(context.Background(), 1))
	assert.Equal(t, int32(1), trader.calls.Load())
	assert.Equal(t, Idle, c.State())
}
