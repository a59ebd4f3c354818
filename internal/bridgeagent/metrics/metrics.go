package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds the bridge agent metrics.
var Registry = prometheus.NewRegistry()

var (
	// RelayConnectivityStatus records the agent's link to the relay.
	// 1 = Registered, 0 = Offline or still registering.
	RelayConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivelink_bridge_relay_connectivity_status",
			Help: "The connectivity status to the relay (1=Registered, 0=NotRegistered).",
		},
	)

	// VehicleConnected is 1 while a vehicle transport is open.
	VehicleConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivelink_bridge_vehicle_connected",
			Help: "Whether a vehicle transport is open (1) or not (0).",
		},
	)

	// CommandsAppliedTotal counts relay commands written to the vehicle.
	CommandsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelink_bridge_commands_applied_total",
			Help: "Total number of relay commands written to the vehicle.",
		},
		[]string{"status"}, // status: success/failed
	)

	// VehicleLinesTotal counts lines read from the vehicle by kind.
	VehicleLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivelink_bridge_vehicle_lines_total",
			Help: "Total number of lines received from the vehicle.",
		},
		[]string{"kind"}, // kind: telemetry/ack/heartbeat/unknown/invalid
	)

	// RelayReconnectsTotal counts relay sessions that ended and were retried.
	RelayReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "drivelink_bridge_relay_reconnects_total",
			Help: "Total number of relay reconnection attempts.",
		},
	)
)

func init() {
	Registry.MustRegister(
		RelayConnectivityStatus,
		VehicleConnected,
		CommandsAppliedTotal,
		VehicleLinesTotal,
		RelayReconnectsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
