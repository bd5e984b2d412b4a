package bot

import "github.com/prometheus/client_golang/prometheus"

var (
	metricCycles         = prometheus.NewCounter(prometheus.CounterOpts{Name: "fxpilot_cycles_total", Help: "Trading cycles started"})
	metricCycleFailures  = prometheus.NewCounter(prometheus.CounterOpts{Name: "fxpilot_cycle_failures_total", Help: "Cycles aborted before the symbol pass"})
	metricSymbolFailures = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fxpilot_symbol_failures_total", Help: "Per-symbol failures by kind"}, []string{"kind"})
	metricOrders         = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fxpilot_orders_total", Help: "Orders accepted by the gateway"}, []string{"symbol", "side"})
	metricRunning        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxpilot_running", Help: "1 while the worker is running"})
	metricEquity         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxpilot_account_equity", Help: "Account equity at the last refresh"})
	metricBalance        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxpilot_account_balance", Help: "Account balance at the last refresh"})
	metricOpenPositions  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "fxpilot_open_positions", Help: "Open positions at the last refresh"})
)

func init() {
	prometheus.MustRegister(
		metricCycles, metricCycleFailures, metricSymbolFailures, metricOrders,
		metricRunning, metricEquity, metricBalance, metricOpenPositions,
	)
}
