package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/goburrow/serial"

	"github.com/autopeer-io/drivelink/internal/profile"
	"github.com/autopeer-io/drivelink/pkg/log"
	"github.com/autopeer-io/drivelink/pkg/wire"
)

// detectPatterns lists device nodes probed when the port is "AUTO". Stable
// by-id names come first; they carry the USB bridge chip in their name.
var detectPatterns = []string{
	"/dev/serial/by-id/*",
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
}

// DetectPort returns the first serial device present on the host.
func DetectPort() (string, error) {
	for _, pattern := range detectPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", errors.New("no serial port detected")
}

// Serial talks to the vehicle over a serial line, 8N1.
type Serial struct {
	cfg    serial.Config
	open   func(*serial.Config) (io.ReadWriteCloser, error)
	logger log.Logger

	mu   sync.Mutex
	conn *lineConn
}

var _ Transport = (*Serial)(nil)

func NewSerial(port string, baudRate int, timeout time.Duration) *Serial {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Serial{
		cfg: serial.Config{
			Address:  port,
			BaudRate: baudRate,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  timeout,
		},
		open: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return serial.Open(c)
		},
		logger: log.WithName("serial"),
	}
}

// Connect opens the port. An "AUTO" port is resolved with DetectPort first.
func (s *Serial) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	if s.cfg.Address == "" || s.cfg.Address == profile.DefaultSerialPort {
		port, err := DetectPort()
		if err != nil {
			return err
		}
		s.logger.Info("Auto-detected serial port", "port", port)
		s.cfg.Address = port
	}

	cfg := s.cfg
	port, err := s.open(&cfg)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.cfg.Address, err)
	}
	s.conn = newLineConn(port, isSerialTimeout)
	s.logger.Info("Connected to vehicle", "port", s.cfg.Address, "baudrate", s.cfg.BaudRate)
	return nil
}

func isSerialTimeout(err error) bool {
	return errors.Is(err, serial.ErrTimeout)
}

func (s *Serial) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.logger.Info("Disconnected from vehicle", "port", s.cfg.Address)
	return conn.close()
}

func (s *Serial) SendCommand(cmd wire.Command) error {
	conn := s.current()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.send(cmd)
}

func (s *Serial) ReceiveLine(ctx context.Context) (string, error) {
	conn := s.current()
	if conn == nil {
		return "", ErrNotConnected
	}
	return conn.receive(ctx)
}

func (s *Serial) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Kind:      KindSerial,
		Address:   s.cfg.Address,
		BaudRate:  s.cfg.BaudRate,
		Connected: s.conn != nil,
	}
}

func (s *Serial) current() *lineConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
