package httpapi

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"laplace/internal/lapp"
	"laplace/internal/logging"
)

// wsConnSink adapts a *websocket.Conn to lapp.WSSink. Writes are
// serialized with a mutex since gorilla/websocket forbids concurrent
// writers on one connection; the actor (C6) already serializes its own
// dispatch, but the read loop below runs on a separate goroutine from the
// actor's writes, so the mutex is still required.
type wsConnSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConnSink(conn *websocket.Conn) *wsConnSink {
	return &wsConnSink{conn: conn}
}

func (s *wsConnSink) SendText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsConnSink) SendBinary(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *wsConnSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// serveWebSocket upgrades r into a WebSocket, attaches it to actor as the
// outbound WS sink, and pumps inbound frames into actor.WebSocket until the
// connection closes, spec.md §4.6's WS routing leg. lappName is used only
// for log correlation.
func serveWebSocket(upgrader *websocket.Upgrader, actor *lapp.ServiceActor, lappName string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WithLapp(lappName, logging.LevelWarn, "websocket upgrade failed: %v", err)
		return
	}
	sink := newWSConnSink(conn)
	actor.NewWebSocket(sink)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			actor.WebSocket(data)
		}
	}
}
