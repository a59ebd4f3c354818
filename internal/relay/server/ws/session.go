package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/autopeer-io/drivelink/internal/relay/core"
	"github.com/autopeer-io/drivelink/pkg/log"
)

var _ core.Session = (*session)(nil)

// session owns one websocket connection. The broker enqueues through Send; a
// single writer goroutine drains the queue so the socket sees one writer.
type session struct {
	id     string
	role   core.Role
	conn   *websocket.Conn
	queue  chan core.Event
	done   chan struct{}
	once   sync.Once
	opened time.Time

	writeTimeout time.Duration
	pongTimeout  time.Duration
	logger       log.Logger
}

func newSession(conn *websocket.Conn, role core.Role, queueSize int, writeTimeout, pongTimeout time.Duration, logger log.Logger) *session {
	id := uuid.NewString()
	return &session{
		id:           id,
		role:         role,
		conn:         conn,
		queue:        make(chan core.Event, queueSize),
		done:         make(chan struct{}),
		opened:       time.Now(),
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
		logger:       logger.WithValues("session", id, "role", string(role)),
	}
}

func (s *session) ID() string      { return s.id }
func (s *session) Role() core.Role { return s.role }

// Send never blocks. It reports false when the queue is full or the session
// is closing.
func (s *session) Send(ev core.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- ev:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// writeLoop drains the queue and keeps the peer alive with pings. It closes
// the socket on exit, which also ends the read loop.
func (s *session) writeLoop() {
	ticker := time.NewTicker(s.pongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.writeClose(websocket.CloseNormalClosure, "")
			return
		case ev := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.logger.Debug("Write failed", "event", ev.Name, "err", err)
				s.close()
				return
			}
			if ev.Name == core.EventBridgeSuperseded {
				s.close()
				s.writeClose(websocket.ClosePolicyViolation, "superseded by a newer bridge")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("Ping failed", "err", err)
				s.close()
				return
			}
		}
	}
}

func (s *session) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
}

// readLoop hands every inbound frame to handle until the peer goes away, a
// read deadline passes or the session is closed.
func (s *session) readLoop(maxSize int64, handle func(Envelope) error) {
	s.conn.SetReadLimit(maxSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.closed() {
				s.logger.Debug("Read failed", "err", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		env, err := DecodeEnvelope(frame)
		if err == nil {
			err = handle(env)
		}
		if err != nil {
			s.logger.Debug("Rejected message", "err", err)
			s.Send(core.NewErrorEvent(err))
		}
	}
}
