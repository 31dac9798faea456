// Package observability exposes the Prometheus metrics for the bridge.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedSessions tracks the number of live dashboard sessions.
	ConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lyra_connected_sessions",
		Help: "Current number of connected dashboard sessions",
	})

	// CommandsTotal counts routed commands by intent and outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lyra_commands_total",
		Help: "Total commands routed, by intent and result status",
	}, []string{"intent", "status"})

	// BroadcastFailures counts pushes that failed for a single session.
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lyra_broadcast_failures_total",
		Help: "Total per-session push failures during broadcasts",
	})

	// RateLimited counts inbound commands rejected by the per-session limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lyra_rate_limited_total",
		Help: "Total inbound commands rejected by the per-session rate limiter",
	})

	// SampleDuration tracks how long one full host metrics sample takes.
	SampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lyra_sample_duration_seconds",
		Help:    "Duration of one host metrics sampling pass",
		Buckets: prometheus.DefBuckets,
	})

	// CurrentMode exposes the active operational mode as a 0/1 gauge per mode.
	CurrentMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lyra_mode",
		Help: "Active operational mode (1 for the current mode, 0 otherwise)",
	}, []string{"mode"})
)

// SetMode flips the CurrentMode gauge so exactly one label reads 1.
func SetMode(active string) {
	for _, m := range []string{"home", "defense", "night", "manual"} {
		v := 0.0
		if m == active {
			v = 1.0
		}
		CurrentMode.WithLabelValues(m).Set(v)
	}
}
