package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Broker command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarter_broker_commands_total",
			Help: "Total broker commands by kind, command and outcome",
		},
		[]string{"kind", "command", "outcome"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smarter_broker_command_duration_seconds",
			Help:    "Broker command latency by kind and command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "command"},
	)

	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarter_manifest_validation_failures_total",
			Help: "Manifest validation failures by kind",
		},
		[]string{"kind"},
	)

	SecretsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smarter_secrets_created_total",
			Help: "Total secrets created through the broker",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		CommandDuration,
		ValidationFailuresTotal,
		SecretsCreatedTotal,
	)
}

// ObserveCommand records one broker command invocation
func ObserveCommand(kind, command, outcome string, start time.Time) {
	CommandsTotal.WithLabelValues(kind, command, outcome).Inc()
	CommandDuration.WithLabelValues(kind, command).Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
