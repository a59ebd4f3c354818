package bridgeagent

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/drivelink/internal/relay/server/ws"
)

const writeTimeout = 5 * time.Second

// relaySession is one websocket connection to the relay. Writes come from
// several goroutines, so they are serialized here.
type relaySession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *relaySession) send(event string, data any) error {
	env := ws.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		env.Data = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(env)
}

// close says goodbye with a close frame before dropping the socket.
func (s *relaySession) close() error {
	s.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	s.mu.Unlock()
	return s.conn.Close()
}
