package mqtt

import (
	"context"
)

// Message is one outbound publication.
type Message struct {
	Topic   string
	QoS     byte
	Retain  bool
	Payload []byte
}

// Publisher is the egress half of an MQTT connection.
type Publisher interface {
	// Start connects in the background and returns immediately.
	Start(ctx context.Context) error

	// Publish sends msg. It fails fast when the publisher was never started.
	Publish(ctx context.Context, msg Message) error

	// AwaitConnection blocks until the broker accepted the connection.
	AwaitConnection(ctx context.Context) error

	IsConnected() bool

	// Disconnect sends DISCONNECT, so the broker discards the will message.
	Disconnect(ctx context.Context)
}
