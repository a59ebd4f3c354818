package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

const dialTimeout = 5 * time.Second

// TCP talks to a vehicle that exposes its command port over wifi.
type TCP struct {
	addr   string
	dialer net.Dialer
	logger log.Logger

	mu   sync.Mutex
	conn *lineConn
}

var _ Transport = (*TCP)(nil)

func NewTCP(ip string, port int) *TCP {
	return &TCP{
		addr:   net.JoinHostPort(ip, strconv.Itoa(port)),
		dialer: net.Dialer{Timeout: dialTimeout},
		logger: log.WithName("wifi"),
	}
}

func (t *TCP) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}

	c, err := t.dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}
	t.conn = newLineConn(c, nil)
	t.logger.Info("Connected to vehicle", "addr", t.addr)
	return nil
}

func (t *TCP) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.logger.Info("Disconnected from vehicle", "addr", t.addr)
	return conn.close()
}

func (t *TCP) SendCommand(cmd wire.Command) error {
	conn := t.current()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.send(cmd)
}

func (t *TCP) ReceiveLine(ctx context.Context) (string, error) {
	conn := t.current()
	if conn == nil {
		return "", ErrNotConnected
	}
	return conn.receive(ctx)
}

func (t *TCP) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{Kind: KindWiFi, Address: t.addr, Connected: t.conn != nil}
}

func (t *TCP) current() *lineConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}
