// Package metrics exposes Prometheus counters and gauges for the
// scheduling loop and swap engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulerTicks counts completed scheduler ticks.
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shadetrader_scheduler_ticks_total",
		Help: "Number of completed scheduler ticks",
	})

	// SchedulerRunning reports whether the scheduler loop is active.
	SchedulerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shadetrader_scheduler_running",
		Help: "1 when the scheduler loop is running, 0 otherwise",
	})

	// OrdersEvaluated counts orders checked against a market snapshot.
	OrdersEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shadetrader_orders_evaluated_total",
		Help: "Number of open orders evaluated against a snapshot",
	})

	// OrdersExecuted counts orders settled successfully.
	OrdersExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shadetrader_orders_executed_total",
		Help: "Number of orders executed and settled",
	})

	// OrdersFailed counts orders marked failed, by reason class.
	OrdersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shadetrader_orders_failed_total",
		Help: "Number of orders marked failed",
	}, []string{"reason"})

	// OrdersExpired counts orders expired by the scheduler.
	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shadetrader_orders_expired_total",
		Help: "Number of orders expired past their expiry date",
	})

	// SwapDuration observes end-to-end swap latency in seconds.
	SwapDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shadetrader_swap_duration_seconds",
		Help:    "End-to-end duration of intent swaps",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 45, 60, 90},
	})

	// SnapshotFetches counts market snapshot fetches, by outcome.
	SnapshotFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shadetrader_snapshot_fetches_total",
		Help: "Market snapshot fetches",
	}, []string{"outcome"})
)
