package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every relay metric. It is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// ObserversActive counts observers that said hello and have not left.
	ObserversActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivelink_relay_observers",
			Help: "Number of observers that announced themselves with hello.",
		},
	)

	// ObserverSessions counts open observer connections, announced or not.
	ObserverSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivelink_relay_observer_sessions",
			Help: "Number of open observer sessions.",
		},
	)

	// LinkState is 1 for the current link state and 0 for the others.
	LinkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "drivelink_relay_link_state",
			Help: "Current bridge/vehicle link state (1 for the active state).",
		},
		[]string{"state"}, // state: no_bridge/bridge_only/vehicle_live
	)

	// TelemetryReceivedTotal counts telemetry updates accepted from the bridge.
	TelemetryReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drivelink_relay_telemetry_received_total",
			Help: "Total number of telemetry updates ingested.",
		},
	)

	// CommandsTotal counts command requests by outcome.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelink_relay_commands_total",
			Help: "Total number of command requests by result.",
		},
		[]string{"result"}, // result: sent/no_bridge/no_vehicle/invalid/unknown
	)

	// EventsDroppedTotal counts outbound events discarded because a session or mirror queue was full.
	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelink_relay_events_dropped_total",
			Help: "Total number of outbound events dropped on full session queues.",
		},
		[]string{"role", "event"}, // role: observer/bridge/mqtt
	)

	// SessionDuration observes how long sessions stay connected.
	SessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivelink_relay_session_duration_seconds",
			Help:    "Lifetime of relay websocket sessions.",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 4 * 3600},
		},
		[]string{"role"},
	)
)

func init() {
	Registry.MustRegister(
		ObserversActive,
		ObserverSessions,
		LinkState,
		TelemetryReceivedTotal,
		CommandsTotal,
		EventsDroppedTotal,
		SessionDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
