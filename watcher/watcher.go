// Package watcher turns the reference venue's Swap events into cycle
// triggers. Triggers land in a single-slot inbox: if a cycle is still
// draining the previous trigger, new ones are dropped, since a stale trigger
// corresponds to already-stale prices.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// swapTopic is the V2 Swap event signature hash.
var swapTopic = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))

// Trigger is one cycle trigger derived from an observed swap.
type Trigger struct {
	Block  uint64
	TxHash common.Hash
	SeenAt time.Time
}

// Watcher subscribes to Swap logs on a single pair contract.
type Watcher struct {
	client  *ethclient.Client
	pair    common.Address
	limiter *rate.Limiter
	logger  *zap.Logger

	inbox   chan Trigger
	dropped func()
}

// NewWatcher creates a watcher over the reference pair. onDrop is invoked
// (if non-nil) each time a trigger is discarded.
func NewWatcher(client *ethclient.Client, pair common.Address, limit rate.Limit, burst int, onDrop func(), logger *zap.Logger) *Watcher {
	return &Watcher{
		client:  client,
		pair:    pair,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		inbox:   make(chan Trigger, 1),
		dropped: onDrop,
	}
}

// Triggers returns the single-slot inbox channel.
func (w *Watcher) Triggers() <-chan Trigger {
	return w.inbox
}

// Run subscribes and forwards swap logs until ctx is cancelled. The
// subscription is re-established after transient errors.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if err := w.watch(ctx); err != nil {
			if ctx.Err() != nil {
				close(w.inbox)
				return ctx.Err()
			}
			w.logger.Warn("swap subscription lost, reconnecting", zap.Error(err))
			select {
			case <-ctx.Done():
				close(w.inbox)
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *Watcher) watch(ctx context.Context) error {
	logs := make(chan types.Log, 16)
	query := ethereum.FilterQuery{
		Addresses: []common.Address{w.pair},
		Topics:    [][]common.Hash{{swapTopic}},
	}

	sub, err := w.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to swap logs: %w", err)
	}
	defer sub.Unsubscribe()

	w.logger.Info("watching for swap events", zap.String("pair", w.pair.Hex()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case lg := <-logs:
			if lg.Removed {
				continue
			}
			if !w.limiter.Allow() {
				w.drop("rate limited", lg)
				continue
			}
			w.offer(Trigger{
				Block:  lg.BlockNumber,
				TxHash: lg.TxHash,
				SeenAt: time.Now(),
			})
		}
	}
}

// offer places the trigger in the inbox, dropping it when the slot is taken.
func (w *Watcher) offer(t Trigger) {
	select {
	case w.inbox <- t:
	default:
		w.logger.Debug("trigger dropped, cycle in flight",
			zap.Uint64("block", t.Block),
			zap.String("tx", t.TxHash.Hex()))
		if w.dropped != nil {
			w.dropped()
		}
	}
}

func (w *Watcher) drop(why string, lg types.Log) {
	w.logger.Debug("trigger dropped",
		zap.String("why", why),
		zap.Uint64("block", lg.BlockNumber))
	if w.dropped != nil {
		w.dropped()
	}
}
