// Package metrics exposes delivery counters for Prometheus scraping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records dispatch outcomes, subscription changes and armed timers.
type Collector struct {
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	subscriptions    *prometheus.CounterVec
	armedTimers      prometheus.Gauge
}

// New registers the collector's metrics on reg (prometheus.DefaultRegisterer if nil).
func New(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "videobot"
	}

	c := &Collector{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "dispatches_total",
			Help:      "Timer fires handled, by outcome.",
		}, []string{"outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent per dispatch, including the Telegram call.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "subscription_changes_total",
			Help:      "Register, unregister and recover operations.",
		}, []string{"action"}),
		armedTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "armed_timers",
			Help:      "Subscribers with a live delivery timer.",
		}),
	}
	reg.MustRegister(c.dispatches, c.dispatchDuration, c.subscriptions, c.armedTimers)
	return c
}

func (c *Collector) ObserveDispatch(outcome string, took time.Duration) {
	c.dispatches.WithLabelValues(outcome).Inc()
	c.dispatchDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

func (c *Collector) ObserveSubscription(action string) {
	c.subscriptions.WithLabelValues(action).Inc()
}

func (c *Collector) SetArmedTimers(n int) {
	c.armedTimers.Set(float64(n))
}
