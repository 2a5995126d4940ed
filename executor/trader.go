package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/michaelpento.lv/arbbot/relay"
	"github.com/michaelpento.lv/arbbot/types"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// HeadReader reports the current chain head.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// SettlementContract builds the trade transaction and reads the wallet's
// balances on both legs.
type SettlementContract interface {
	BuildTrade(ctx context.Context, from common.Address, startOnFirstVenue bool, tokenA, tokenB common.Address, amount *big.Int, gasLimit uint64, gasPrice *big.Int) (*gethtypes.Transaction, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
}

// BundleRelay signs, submits, and confirms a private bundle.
type BundleRelay interface {
	SignBundle(txs []*gethtypes.Transaction, signer *ecdsa.PrivateKey) (*relay.SignedBundle, error)
	SendRawBundle(ctx context.Context, bundle *relay.SignedBundle, targetBlock uint64) (*relay.SubmitResult, error)
	AwaitInclusion(ctx context.Context, bundle *relay.SignedBundle, targetBlock uint64) (*relay.InclusionResult, error)
}

// GasPricer supplies the clamped submission gas price.
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// RelayTrader executes approved trades through the private relay. It builds
// the settlement transaction, signs it into a bundle targeting the next
// block, waits for the relay outcome, and reconciles balances into an
// ExecutionRecord.
type RelayTrader struct {
	client     HeadReader
	contract   SettlementContract
	relay      BundleRelay
	gas        GasPricer
	signer     *ecdsa.PrivateKey
	wallet     common.Address
	funding    common.Address
	target     common.Address
	firstVenue string
	gasLimit   uint64
	logger     *zap.Logger
}

// NewRelayTrader creates the production trade path. firstVenue is the venue
// the settlement contract treats as its primary leg; the startOnFirstVenue
// flag tells it which direction the route runs.
func NewRelayTrader(client HeadReader, contract SettlementContract, relayClient BundleRelay, gasEst GasPricer, signer *ecdsa.PrivateKey, funding, target common.Address, firstVenue string, gasLimit uint64, logger *zap.Logger) *RelayTrader {
	return &RelayTrader{
		client:     client,
		contract:   contract,
		relay:      relayClient,
		gas:        gasEst,
		signer:     signer,
		wallet:     crypto.PubkeyToAddress(signer.PublicKey),
		funding:    funding,
		target:     target,
		firstVenue: firstVenue,
		gasLimit:   gasLimit,
		logger:     logger,
	}
}

// Execute submits the trade as a privately-relayed bundle targeting the next
// block only. Before-balances are captured prior to submission; the record
// is emitted whatever the relay outcome.
func (t *RelayTrader) Execute(ctx context.Context, opp *types.Opportunity, sim *types.SimulationResult) (*types.ExecutionRecord, error) {
	before, err := t.balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances before trade: %w", err)
	}

	gasPrice, err := t.gas.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	startOnFirstVenue := opp.Route.Legs[0].Venue == t.firstVenue

	tx, err := t.contract.BuildTrade(ctx, t.wallet, startOnFirstVenue, t.funding, t.target, sim.AmountIn, t.gasLimit, gasPrice)
	if err != nil {
		return nil, err
	}

	bundle, err := t.relay.SignBundle([]*gethtypes.Transaction{tx}, t.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign bundle: %w", err)
	}

	head, err := t.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	targetBlock := head + 1

	t.logger.Info("submitting bundle",
		zap.Uint64("target_block", targetBlock),
		zap.String("amount_in", sim.AmountIn.String()),
		zap.Bool("start_on_first_venue", startOnFirstVenue))

	submitted, err := t.relay.SendRawBundle(ctx, bundle, targetBlock)
	if err != nil {
		return nil, fmt.Errorf("relay submission failed: %w", err)
	}

	inclusion, err := t.relay.AwaitInclusion(ctx, bundle, targetBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to await inclusion: %w", err)
	}

	after, err := t.balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances after trade: %w", err)
	}

	status := types.StatusNotIncluded
	switch {
	case inclusion.Included && inclusion.Reverted:
		status = types.StatusReverted
	case inclusion.Included:
		status = types.StatusIncluded
	}

	record := &types.ExecutionRecord{
		BundleID:    submitted.BundleID,
		TargetBlock: targetBlock,
		Status:      status,
		Before:      before,
		After:       after,
		Net:         new(big.Int).Sub(after.Funding, before.Funding),
		RecordedAt:  time.Now(),
	}

	t.logger.Info("bundle settled",
		zap.String("bundle", record.BundleID),
		zap.String("status", string(status)),
		zap.String("net", record.Net.String()))

	return record, nil
}

func (t *RelayTrader) balances(ctx context.Context) (types.Balances, error) {
	funding, err := t.contract.BalanceOf(ctx, t.funding, t.wallet)
	if err != nil {
		return types.Balances{}, err
	}
	native, err := t.contract.NativeBalance(ctx, t.wallet)
	if err != nil {
		return types.Balances{}, err
	}
	return types.Balances{Funding: funding, Native: native}, nil
}
