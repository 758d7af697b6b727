// Package subscriberService adapts the WebSocket transport (out of scope
// per spec.md §1) onto the session.Transport contract the protocol state
// machine expects.
package subscriberService

import (
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport wraps one gorilla/websocket connection as a session.Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func newWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

// NewTransportForConn builds a session.Transport around an upgraded
// WebSocket connection. Exported for the HTTP adapter in
// subscriberService/http, which owns the upgrade itself.
func NewTransportForConn(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	return newWSTransport(conn, writeTimeout)
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteJSON(v any) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) CloseWithCode(code int, reason string) error {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return t.conn.Close()
}
