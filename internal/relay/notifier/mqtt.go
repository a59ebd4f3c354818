package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/internal/relay/metrics"
	"github.com/autopeer-io/drivelink/pkg/log"
	pkgmqtt "github.com/autopeer-io/drivelink/pkg/mqtt"
	"github.com/autopeer-io/drivelink/pkg/mqtt/topic"
	"github.com/autopeer-io/drivelink/pkg/options"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

const publishTimeout = 5 * time.Second

var _ core.Notifier = (*MQTTNotifier)(nil)

// LinkMessage is the retained payload of the relay status topic.
type LinkMessage struct {
	Online        bool      `json:"online"`
	State         string    `json:"state,omitempty"`
	BridgeOnline  bool      `json:"bridge_online"`
	VehicleOnline bool      `json:"vehicle_online"`
	VehicleID     string    `json:"vehicle_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// MQTTNotifier mirrors telemetry, forwarded commands and link changes to an
// MQTT broker. Broker callbacks only enqueue; Start publishes.
type MQTTNotifier struct {
	client pkgmqtt.Publisher
	topics *topic.TopicBuilder
	status string
	queue  chan pkgmqtt.Message
	logger log.Logger
	now    func() time.Time

	mu      sync.Mutex
	last    *LinkMessage
	lastSeq uint64
}

// NewMQTTNotifier creates a dedicated egress client. The broker is told to
// publish an offline status if the relay vanishes without disconnecting.
func NewMQTTNotifier(opts *options.MqttOptions) (*MQTTNotifier, error) {
	topics := topic.NewTopicBuilder(opts.TopicRoot)

	cfg := opts.ToClientConfig()
	cfg.ClientID = opts.ClientID + "-mirror"
	cfg.WillTopic = topics.Status(opts.ClientID)
	cfg.WillPayload, _ = json.Marshal(LinkMessage{Online: false})
	cfg.WillQoS = 1
	cfg.WillRetain = true

	var n *MQTTNotifier
	cfg.OnConnect = func() { n.reconnected() }

	client, err := pkgmqtt.NewPublisher(cfg)
	if err != nil {
		return nil, err
	}
	n = newMQTTNotifier(client, opts)
	return n, nil
}

func newMQTTNotifier(client pkgmqtt.Publisher, opts *options.MqttOptions) *MQTTNotifier {
	topics := topic.NewTopicBuilder(opts.TopicRoot)
	return &MQTTNotifier{
		client: client,
		topics: topics,
		status: topics.Status(opts.ClientID),
		queue:  make(chan pkgmqtt.Message, opts.QueueSize),
		logger: log.WithName("mqtt-mirror"),
		now:    time.Now,
	}
}

func (n *MQTTNotifier) TelemetryUpdated(vehicleID string, t wire.Telemetry) {
	n.enqueue("telemetry", n.topics.Telemetry(vehicleID), 0, false, t)
}

func (n *MQTTNotifier) CommandForwarded(vehicleID string, cmd core.VehicleCommand) {
	n.enqueue("command", n.topics.Command(vehicleID), 0, false, cmd)
}

// LinkChanged publishes the retained status. A status older than the last
// one seen is discarded, and statuses are queued in sequence order.
func (n *MQTTNotifier) LinkChanged(status core.LinkStatus) {
	msg := LinkMessage{
		Online:        true,
		State:         status.State,
		BridgeOnline:  status.BridgeOnline,
		VehicleOnline: status.VehicleOnline,
		VehicleID:     status.VehicleID,
		Timestamp:     n.now(),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if status.Seq != 0 && status.Seq <= n.lastSeq {
		n.logger.Debug("Discarding stale link status", "seq", status.Seq, "last", n.lastSeq, "state", status.State)
		return
	}
	if status.Seq != 0 {
		n.lastSeq = status.Seq
	}
	n.last = &msg
	n.enqueue("status", n.status, 1, true, msg)
}

// reconnected republishes the last link status. The broker may have
// published the will while the connection was down.
func (n *MQTTNotifier) reconnected() {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg := LinkMessage{Online: true, Timestamp: n.now()}
	if n.last != nil {
		msg = *n.last
		msg.Timestamp = n.now()
	}
	n.enqueue("status", n.status, 1, true, msg)
}

// enqueue never blocks; a full queue drops the message.
func (n *MQTTNotifier) enqueue(kind, to string, qos byte, retain bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		n.logger.Error(err, "Failed to encode mirror message", "topic", to)
		return
	}
	select {
	case n.queue <- pkgmqtt.Message{Topic: to, QoS: qos, Retain: retain, Payload: payload}:
	default:
		metrics.EventsDroppedTotal.WithLabelValues("mqtt", kind).Inc()
		n.logger.Debug("Mirror queue full, dropping message", "topic", to)
	}
}

// Start connects and publishes queued messages until ctx is done. It
// satisfies the relay server interface so it runs beside the HTTP server.
func (n *MQTTNotifier) Start(ctx context.Context) error {
	if err := n.client.Start(ctx); err != nil {
		return err
	}
	n.logger.Info("MQTT mirror started", "status", n.status)

	for {
		select {
		case <-ctx.Done():
			n.shutdown()
			return nil
		case msg := <-n.queue:
			n.publish(ctx, msg)
		}
	}
}

func (n *MQTTNotifier) publish(ctx context.Context, msg pkgmqtt.Message) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.client.Publish(pubCtx, msg); err != nil {
		n.logger.Warn("Failed to publish mirror message", "topic", msg.Topic, "err", err)
	}
}

func (n *MQTTNotifier) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if n.client.IsConnected() {
		payload, _ := json.Marshal(LinkMessage{Online: false, Timestamp: n.now()})
		offline := pkgmqtt.Message{Topic: n.status, QoS: 1, Retain: true, Payload: payload}
		if err := n.client.Publish(ctx, offline); err != nil {
			n.logger.Warn("Failed to publish offline status", "err", err)
		}
	}
	n.client.Disconnect(ctx)
	n.logger.Info("MQTT mirror stopped")
}
