package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registerd_terminal_events_total",
		Help: "Terminal events received from the broker, by event type.",
	}, []string{"type"})

	EventDecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registerd_event_decode_failures_total",
		Help: "Inbound payloads that failed to decode as a terminal event.",
	})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registerd_checkouts_total",
		Help: "Checkout attempts by outcome (cancelled, succeeded, failed, superseded, duplicate).",
	}, []string{"outcome"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registerd_reconciliations_total",
		Help: "Backend transaction confirmations by outcome (confirmed, rejected, error).",
	}, []string{"outcome"})

	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "registerd_connection_state",
		Help: "Event channel connection state (0 disconnected, 1 connecting, 2 connected).",
	})
)
