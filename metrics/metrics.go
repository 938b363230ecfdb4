// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PassesRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotbot_passes_run_total",
		Help: "Coordinator passes executed, by phase.",
	}, []string{"phase"})

	PassesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotbot_passes_skipped_total",
		Help: "Coordinator passes skipped because another pass held the lock.",
	}, []string{"phase"})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotbot_orders_submitted_total",
		Help: "Orders submitted to the venue, by side.",
	}, []string{"side"})

	OrderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotbot_order_failures_total",
		Help: "Order submissions rejected by the venue.",
	})

	StoplossExits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotbot_stoploss_exits_total",
		Help: "Stoploss exit orders submitted.",
	})

	FillsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotbot_fills_applied_total",
		Help: "Venue fills applied to the ledger.",
	})

	PositionValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lotbot_position_value",
		Help: "Last observed market value of open lots per instrument.",
	}, []string{"instrument"})
)

// Handler serves the default registry; mount it on /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
