package events

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestServer(t *testing.T, bus *Bus) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewWSHandler(bus, newTestLogger()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWSHandler_ForwardsEvents(t *testing.T) {
	bus := NewBus(4, newTestLogger())
	conn := dialTestServer(t, bus)

	// History replay covers the case where Emit wins the race with Subscribe.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := bus.Emit(BackendError, "Backend process terminated (exit code 1)"); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Name != BackendError {
		t.Errorf("Name = %q, want %q", ev.Name, BackendError)
	}
	if !strings.Contains(ev.Payload, "Backend process terminated") {
		t.Errorf("Payload = %q", ev.Payload)
	}
}

func TestWSHandler_ReplaysEarlierFailure(t *testing.T) {
	bus := NewBus(4, newTestLogger())
	bus.Emit(BackendError, "Backend process could not be started")

	conn := dialTestServer(t, bus)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Payload != "Backend process could not be started" {
		t.Errorf("Payload = %q", ev.Payload)
	}
}

func TestWSHandler_ClosesOnBusClose(t *testing.T) {
	bus := NewBus(4, newTestLogger())
	conn := dialTestServer(t, bus)

	// Give the handler time to subscribe before closing.
	time.Sleep(50 * time.Millisecond)
	bus.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want close going away", err)
	}
}
