package subscriberService

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestServer(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade failed: %v", err)
			return
		}
		serverConnCh <- conn
	}))

	clientConn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("client dial failed: %v", err)
	}

	serverConn := <-serverConnCh
	cleanup := func() {
		clientConn.Close()
		serverConn.Close()
		server.Close()
	}
	return clientConn, serverConn, cleanup
}

func TestWSTransport_WriteJSONAndReadMessage(t *testing.T) {
	clientConn, serverConn, cleanup := dialTestServer(t)
	defer cleanup()

	transport := NewTransportForConn(serverConn, time.Second)
	if err := transport.WriteJSON(map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if string(data) != `{"hello":"world"}` {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestWSTransport_CloseWithCodeSendsCloseFrame(t *testing.T) {
	clientConn, serverConn, cleanup := dialTestServer(t)
	defer cleanup()

	transport := NewTransportForConn(serverConn, time.Second)

	closeCodeCh := make(chan int, 1)
	clientConn.SetCloseHandler(func(code int, text string) error {
		closeCodeCh <- code
		return nil
	})
	clientConn.SetReadDeadline(time.Now().Add(time.Second))

	if err := transport.CloseWithCode(1001, "server shutting down"); err != nil {
		t.Fatalf("CloseWithCode returned error: %v", err)
	}

	clientConn.ReadMessage()

	select {
	case code := <-closeCodeCh:
		if code != 1001 {
			t.Errorf("expected close code 1001, got %d", code)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for close frame")
	}
}
