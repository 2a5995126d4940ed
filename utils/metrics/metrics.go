package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CycleMetrics tracks the detection/simulation/execution pipeline.
type CycleMetrics struct {
	CyclesTotal     *prometheus.CounterVec // by outcome
	TriggersDropped prometheus.Counter
	DeltaBps        prometheus.Histogram
	SimRejections   *prometheus.CounterVec // by reason
	BundlesTotal    *prometheus.CounterVec // by status
	RealizedProfit  prometheus.Counter
	CycleLatency    prometheus.Histogram
}

// NewCycleMetrics creates and registers the pipeline metrics on reg.
func NewCycleMetrics(namespace string, reg prometheus.Registerer) *CycleMetrics {
	m := &CycleMetrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of cycles by outcome",
		}, []string{"outcome"}),
		TriggersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_dropped_total",
			Help:      "Triggers dropped because a cycle was already in flight",
		}),
		DeltaBps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detected_delta_bps",
			Help:      "Detected price delta in basis points",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SimRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_rejections_total",
			Help:      "Simulator rejections by reason",
		}, []string{"reason"}),
		BundlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_total",
			Help:      "Submitted bundles by inclusion status",
		}, []string{"status"}),
		RealizedProfit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realized_profit_wei_total",
			Help:      "Cumulative realized funding-token profit in wei",
		}),
		CycleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_latency_seconds",
			Help:      "Wall time of a full cycle",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.TriggersDropped,
		m.DeltaBps,
		m.SimRejections,
		m.BundlesTotal,
		m.RealizedProfit,
		m.CycleLatency,
	)

	return m
}

// Serve exposes the registry over HTTP at /metrics. Blocks; run in its own
// goroutine.
func Serve(endpoint string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(endpoint, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
