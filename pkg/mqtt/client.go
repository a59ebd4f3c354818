package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/drivelink/pkg/log"
)

// ErrNotStarted is returned by calls made before Start.
var ErrNotStarted = errors.New("mqtt publisher not started")

type pahoPublisher struct {
	cfg *ClientConfig
	cm  *autopaho.ConnectionManager

	connected atomic.Bool
	logger    log.Logger
}

// NewPublisher creates a Publisher backed by an autopaho connection manager,
// which reconnects with a constant backoff until the context given to Start
// is done.
func NewPublisher(cfg *ClientConfig) (Publisher, error) {
	if cfg == nil {
		return nil, errors.New("mqtt config is required")
	}

	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoPublisher{
		cfg:    cfg,
		logger: log.WithName("mqtt").WithValues("clientID", cfg.ClientID),
	}, nil
}

func (p *pahoPublisher) Start(ctx context.Context) error {
	brokerURL, _ := url.Parse(p.cfg.BrokerURL) // validated in NewPublisher

	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     p.cfg.KeepAlive,
		CleanStartOnInitialConnection: p.cfg.CleanStart,
		SessionExpiryInterval:         p.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(p.cfg.ReconnectBackoff),
		ConnectTimeout:                p.cfg.ConnectTimeout,
		ConnectUsername:               p.cfg.Username,
		ConnectPassword:               []byte(p.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: p.cfg.InsecureSkipVerify},
		WillMessage:                   p.cfg.will(),
		ClientConfig: paho.ClientConfig{
			ClientID:           p.cfg.ClientID,
			OnClientError:      p.onClientError,
			OnServerDisconnect: p.onServerDisconnect,
		},
		OnConnectionUp: p.onConnectionUp,
		OnConnectError: p.onConnectError,
	})
	if err != nil {
		return err
	}

	p.cm = cm
	p.logger.Info("MQTT publisher started", "broker", p.cfg.BrokerURL)
	return nil
}

func (p *pahoPublisher) Publish(ctx context.Context, msg Message) error {
	if p.cm == nil {
		return ErrNotStarted
	}
	_, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   msg.Topic,
		QoS:     msg.QoS,
		Retain:  msg.Retain,
		Payload: msg.Payload,
	})
	return err
}

func (p *pahoPublisher) AwaitConnection(ctx context.Context) error {
	if p.cm == nil {
		return ErrNotStarted
	}
	return p.cm.AwaitConnection(ctx)
}

func (p *pahoPublisher) IsConnected() bool {
	return p.connected.Load()
}

func (p *pahoPublisher) Disconnect(ctx context.Context) {
	if p.cm == nil {
		return
	}
	if err := p.cm.Disconnect(ctx); err != nil {
		p.logger.Debug("MQTT disconnect did not complete", "err", err)
	}
	p.connected.Store(false)
	p.logger.Info("MQTT publisher disconnected")
}

func (p *pahoPublisher) onConnectionUp(_ *autopaho.ConnectionManager, _ *paho.Connack) {
	p.connected.Store(true)
	p.logger.Info("MQTT connection established")
	if p.cfg.OnConnect != nil {
		p.cfg.OnConnect()
	}
}

func (p *pahoPublisher) onConnectError(err error) {
	p.connected.Store(false)
	p.logger.Warn("MQTT connection failed, retrying", "err", err, "backoff", p.cfg.ReconnectBackoff)
}

func (p *pahoPublisher) onClientError(err error) {
	p.connected.Store(false)
	p.logger.Error(err, "MQTT client error")
}

func (p *pahoPublisher) onServerDisconnect(d *paho.Disconnect) {
	p.connected.Store(false)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	p.logger.Warn("MQTT broker closed the connection", "reason", reason, "code", d.ReasonCode)
}
