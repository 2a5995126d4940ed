package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSystemMonitor(t *testing.T) {
	logger := zap.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	mon, err := NewSystemMonitor(ctx, reg, logger)
	require.NoError(t, err)
	require.NotNil(t, mon)
	defer mon.Cleanup()

	// Let it collect at least one sample
	time.Sleep(1100 * time.Millisecond)

	metrics := mon.GetMetrics()
	assert.Contains(t, metrics, "mem_usage")
	assert.Contains(t, metrics, "goroutines")
	assert.Contains(t, metrics, "heap_objects")
	assert.Contains(t, metrics, "heap_alloc")
	assert.Contains(t, metrics, "gc_pause")

	goroutines, ok := metrics["goroutines"].(int64)
	assert.True(t, ok)
	assert.Greater(t, goroutines, int64(0))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
