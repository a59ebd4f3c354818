package topic

import (
	"fmt"
	"strings"
)

// Topic segments mirrored by the relay. Consumers subscribe to these, so
// renaming one breaks existing dashboards.
const (
	// SuffixTelemetry carries the latest telemetry snapshot of a vehicle.
	// Structure: {root}/telemetry/{vehicleID}
	SuffixTelemetry = "telemetry"

	// SuffixStatus carries the retained link status of a relay.
	// Structure: {root}/status/{relayID}
	SuffixStatus = "status"

	// SuffixCommand carries every command the relay forwarded to the bridge.
	// Structure: {root}/command/{vehicleID}
	SuffixCommand = "command"
)

// UnknownVehicle is used as the identifier segment when no vehicle is live.
const UnknownVehicle = "unknown"

// TopicBuilder encapsulates the logic for constructing MQTT topic strings.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "drivelink/v1").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.TrimSuffix(root, "/")}
}

// Telemetry returns the topic a vehicle's telemetry snapshots are mirrored to.
func (b *TopicBuilder) Telemetry(vehicleID string) string {
	return b.build(SuffixTelemetry, vehicleID)
}

// TelemetryFilter matches the telemetry of every vehicle. Dashboards
// subscribe to it; the relay itself never does.
func (b *TopicBuilder) TelemetryFilter() string {
	return b.root + "/" + SuffixTelemetry + "/+"
}

// Status returns the retained link status topic of a relay instance.
func (b *TopicBuilder) Status(relayID string) string {
	return b.build(SuffixStatus, relayID)
}

// Command returns the topic forwarded commands are mirrored to.
func (b *TopicBuilder) Command(vehicleID string) string {
	return b.build(SuffixCommand, vehicleID)
}

// Pattern: {root}/{suffix}/{identifier}
func (b *TopicBuilder) build(suffix, id string) string {
	if id == "" {
		id = UnknownVehicle
	}
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
