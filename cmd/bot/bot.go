// Package bot wires the pipeline together and drives it from the swap-event
// trigger stream.
package bot

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/michaelpento.lv/arbbot/audit"
	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/detector"
	"github.com/michaelpento.lv/arbbot/dex"
	"github.com/michaelpento.lv/arbbot/dex/univ2"
	"github.com/michaelpento.lv/arbbot/executor"
	"github.com/michaelpento.lv/arbbot/gas"
	"github.com/michaelpento.lv/arbbot/pricefeed"
	"github.com/michaelpento.lv/arbbot/relay"
	"github.com/michaelpento.lv/arbbot/settlement"
	"github.com/michaelpento.lv/arbbot/simulator"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
	"github.com/michaelpento.lv/arbbot/utils/monitor"
	"github.com/michaelpento.lv/arbbot/watcher"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Bot is the assembled arbitrage pipeline.
type Bot struct {
	cfg         *config.Config
	logger      *zap.Logger
	client      *ethclient.Client
	wsClient    *ethclient.Client
	watcher     *watcher.Watcher
	coordinator *executor.Coordinator
	auditLog    *audit.Log
	registry    *prometheus.Registry
	wg          sync.WaitGroup
}

// New dials the chain endpoints, resolves the settlement pair once, and
// wires every pipeline stage. Any failure here is fatal: the process cannot
// trade without its collaborators.
func New(ctx context.Context, cfg *config.Config, secrets *config.Secrets, logger *zap.Logger) (*Bot, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	wsClient, err := ethclient.DialContext(ctx, cfg.WSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS endpoint: %w", err)
	}

	contract, err := settlement.NewContract(cfg.ArbContract, client)
	if err != nil {
		return nil, err
	}

	fundingToken, err := contract.ResolveToken(ctx, cfg.FundingToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve funding token: %w", err)
	}
	targetToken, err := contract.ResolveToken(ctx, cfg.TargetToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target token: %w", err)
	}
	logger.Info("settlement pair resolved",
		zap.String("funding", fundingToken.Symbol),
		zap.String("target", targetToken.Symbol))

	venues := make([]dex.Venue, 0, len(cfg.Venues))
	venueMap := make(map[string]dex.Venue, len(cfg.Venues))
	venueOrder := make([]string, 0, len(cfg.Venues))
	var refVenue *univ2.Venue
	refCfg := cfg.ReferenceVenue()
	for _, vc := range cfg.Venues {
		v, err := univ2.NewVenue(client, vc.Name, vc.FactoryAddress(), vc.RouterAddress())
		if err != nil {
			return nil, fmt.Errorf("failed to create venue %s: %w", vc.Name, err)
		}
		v.SetPair(fundingToken.Address, targetToken.Address)
		logger.Debug("venue configured",
			zap.String("venue", vc.Name),
			zap.String("factory", vc.Factory),
			zap.String("router", v.GetRouterAddress().Hex()))
		venues = append(venues, v)
		venueMap[vc.Name] = v
		venueOrder = append(venueOrder, vc.Name)
		if vc.Name == refCfg.Name {
			refVenue = v
		}
	}

	refPair, err := refVenue.PairAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reference pair: %w", err)
	}

	registry := prometheus.NewRegistry()
	cycleMetrics := metrics.NewCycleMetrics("arbbot", registry)

	auditLog, err := audit.NewLog(cfg.AuditLogPath, logger)
	if err != nil {
		return nil, err
	}

	nativeRate, err := cfg.NativeRate()
	if err != nil {
		return nil, err
	}

	gasEst := gas.NewEstimator(client, cfg.GasPriceCap, logger)
	feed := pricefeed.NewFeed(venues, fundingToken.Address, logger)
	det := detector.NewDetector(venueOrder, logger)
	sim := simulator.NewSimulator(venueMap, fundingToken.Address, targetToken.Address, gasEst, cfg.GasLimit, nativeRate, logger)
	relayClient := relay.NewClient(cfg.RelayURL, secrets.RelaySigningKey, client, new(big.Int).SetUint64(cfg.ChainID))
	trader := executor.NewRelayTrader(client, contract, relayClient, gasEst, secrets.PrivateKey,
		fundingToken.Address, targetToken.Address, venueOrder[0], cfg.GasLimit, logger)

	coordinator := executor.NewCoordinator(executor.Config{
		ThresholdBps: cfg.PriceDiffBps,
		SlippageBps:  cfg.SlippageBps,
		MinProfit:    cfg.MinProfit,
	}, feed, det, sim, trader, auditLog, cycleMetrics, logger)

	w := watcher.NewWatcher(wsClient, refPair,
		rate.Limit(cfg.TriggerRateLimit), cfg.TriggerBurst,
		cycleMetrics.TriggersDropped.Inc, logger)

	return &Bot{
		cfg:         cfg,
		logger:      logger,
		client:      client,
		wsClient:    wsClient,
		watcher:     w,
		coordinator: coordinator,
		auditLog:    auditLog,
		registry:    registry,
	}, nil
}

// Run starts the watcher and consumes its trigger stream until ctx is
// cancelled. One trigger means at most one cycle; the coordinator's guard
// drops anything that arrives mid-cycle.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.PrometheusEnabled {
		go metrics.Serve(b.cfg.PrometheusEndpoint, b.registry, b.logger)
		sysMon, err := monitor.NewSystemMonitor(ctx, b.registry, b.logger)
		if err != nil {
			b.logger.Warn("failed to start system monitor", zap.Error(err))
		} else {
			defer sysMon.Cleanup()
		}
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.watcher.Run(ctx); err != nil && ctx.Err() == nil {
			b.logger.Error("watcher stopped", zap.Error(err))
		}
	}()

	b.logger.Info("waiting for swap events")

	for trigger := range b.watcher.Triggers() {
		b.logger.Debug("trigger received",
			zap.Uint64("block", trigger.Block),
			zap.String("tx", trigger.TxHash.Hex()))

		if err := b.coordinator.TryCycle(ctx, trigger.Block); err != nil {
			// Recoverable: log and wait for the next trigger.
			b.logger.Warn("cycle finished with error", zap.Error(err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	return ctx.Err()
}

// Close releases connections and flushes the audit log.
func (b *Bot) Close() {
	b.wg.Wait()
	if err := b.auditLog.Close(); err != nil {
		b.logger.Error("failed to close audit log", zap.Error(err))
	}
	b.client.Close()
	b.wsClient.Close()
}
