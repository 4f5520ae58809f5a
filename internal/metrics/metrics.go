// Package metrics exposes the engine's prometheus instrumentation: a
// few counters on the order lifecycle, a gauge on tracker occupancy,
// and a histogram on signal-to-dispatch latency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's registered collectors. Construct with New
// and wire the collectors' Inc/Set methods into the dispatcher and
// tracker callbacks.
type Metrics struct {
	DispatchedOrders prometheus.Counter
	SendFailures     prometheus.Counter
	CancelledOrders  prometheus.Counter
	ChaseResends     prometheus.Counter
	ActiveOrders     prometheus.Gauge
	DispatchLatency  prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchedOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "followtrader", Name: "dispatched_orders_total",
			Help: "Follow orders successfully sent to the target gateway.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "followtrader", Name: "send_failures_total",
			Help: "Order requests rejected by the gateway or breaker before a order id was returned.",
		}),
		CancelledOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "followtrader", Name: "cancelled_orders_total",
			Help: "Timeout or operator-triggered cancels issued by the tracker.",
		}),
		ChaseResends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "followtrader", Name: "chase_resends_total",
			Help: "Chase resend cycles completed.",
		}),
		ActiveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "followtrader", Name: "active_orders",
			Help: "Orders currently under timeout-cancel tracking.",
		}),
		DispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "followtrader", Name: "signal_to_dispatch_seconds",
			Help:    "Time from signal acceptance to order dispatch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.DispatchedOrders, m.SendFailures, m.CancelledOrders, m.ChaseResends, m.ActiveOrders, m.DispatchLatency)
	return m
}
