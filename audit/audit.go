// Package audit appends per-cycle and per-execution records to a JSON-lines
// file, with a structured log mirror. Records are immutable once appended.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/michaelpento.lv/arbbot/types"

	"go.uber.org/zap"
)

// CycleRecord captures one full detection cycle, whether or not it executed.
// Silent cycles are a defect: every outcome is recorded.
type CycleRecord struct {
	At          time.Time                 `json:"at"`
	Block       uint64                    `json:"block,omitempty"`
	Prices      map[string]string         `json:"prices"`
	Outcome     string                    `json:"outcome"` // no-opportunity, rejected, executed, error
	DeltaBps    string                    `json:"delta_bps,omitempty"`
	BuyVenue    string                    `json:"buy_venue,omitempty"`
	SellVenue   string                    `json:"sell_venue,omitempty"`
	AmountIn    string                    `json:"amount_in,omitempty"`
	AmountOut   string                    `json:"amount_out,omitempty"`
	LegAmounts  []LegRecord               `json:"leg_amounts,omitempty"`
	GasCost     string                    `json:"gas_cost,omitempty"`
	NetProfit   string                    `json:"net_profit,omitempty"`
	Reason      string                    `json:"reason,omitempty"`
	Execution   *ExecutionRecord          `json:"execution,omitempty"`
}

// LegRecord is one leg's quoted amounts.
type LegRecord struct {
	Venue     string `json:"venue"`
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// ExecutionRecord is the serialized form of a types.ExecutionRecord.
type ExecutionRecord struct {
	BundleID      string `json:"bundle_id"`
	TargetBlock   uint64 `json:"target_block"`
	Status        string `json:"status"`
	FundingBefore string `json:"funding_before"`
	FundingAfter  string `json:"funding_after"`
	NativeBefore  string `json:"native_before"`
	NativeAfter   string `json:"native_after"`
	Net           string `json:"net"`
}

// Log is a mutex-guarded append-only audit sink.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	logger *zap.Logger
}

// NewLog opens (or creates) the audit file in append mode. An empty path
// disables the file sink; records still go to the structured logger.
func NewLog(path string, logger *zap.Logger) (*Log, error) {
	l := &Log{logger: logger}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		l.file = f
	}
	return l, nil
}

// Append writes one cycle record.
func (l *Log) Append(rec *CycleRecord) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	l.logger.Info("cycle",
		zap.String("outcome", rec.Outcome),
		zap.Any("prices", rec.Prices),
		zap.String("delta_bps", rec.DeltaBps),
		zap.String("reason", rec.Reason),
		zap.String("net_profit", rec.NetProfit))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		l.logger.Error("failed to marshal audit record", zap.Error(err))
		return
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		l.logger.Error("failed to append audit record", zap.Error(err))
	}
}

// Close flushes and closes the file sink.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// FromExecution converts a types.ExecutionRecord for serialization.
func FromExecution(rec *types.ExecutionRecord) *ExecutionRecord {
	out := &ExecutionRecord{
		BundleID:    rec.BundleID,
		TargetBlock: rec.TargetBlock,
		Status:      string(rec.Status),
	}
	if rec.Before.Funding != nil {
		out.FundingBefore = rec.Before.Funding.String()
	}
	if rec.After.Funding != nil {
		out.FundingAfter = rec.After.Funding.String()
	}
	if rec.Before.Native != nil {
		out.NativeBefore = rec.Before.Native.String()
	}
	if rec.After.Native != nil {
		out.NativeAfter = rec.After.Native.String()
	}
	if rec.Net != nil {
		out.Net = rec.Net.String()
	}
	return out
}
