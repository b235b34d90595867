package wsserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", msgType)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return ev
}

func TestHubBroadcastsToAllClients(t *testing.T) {
	h := NewHub(HubOptions{})
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	a := dialHub(t, url)
	b := dialHub(t, url)
	waitForClients(t, h, 2)

	h.Publish(Event{Type: EventMode, Mode: "game"})
	h.Publish(Event{Type: EventExec, Command: "echo hi"})

	for _, conn := range []*websocket.Conn{a, b} {
		first := readEvent(t, conn)
		if first.Type != EventMode || first.Mode != "game" {
			t.Errorf("first event = %+v, want mode game", first)
		}
		second := readEvent(t, conn)
		if second.Type != EventExec || second.Command != "echo hi" {
			t.Errorf("second event = %+v, want exec echo hi", second)
		}
	}
}

func TestHubRemovesDisconnectedClient(t *testing.T) {
	h := NewHub(HubOptions{})
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dialHub(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)

	// Publishing with no clients is a no-op.
	h.Publish(Event{Type: EventExec, Command: "nobody listening"})
}

func TestHubPublishDropsInvalidEvent(t *testing.T) {
	h := NewHub(HubOptions{})
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	conn := dialHub(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	waitForClients(t, h, 1)

	h.Publish(Event{})
	h.Publish(Event{Type: EventSchedule, Command: "later"})

	if ev := readEvent(t, conn); ev.Type != EventSchedule {
		t.Fatalf("event = %+v, want the schedule event only", ev)
	}
}

func TestHubStartStop(t *testing.T) {
	h := NewHub(HubOptions{Addr: "127.0.0.1:0"})
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !strings.HasPrefix(h.URL(), "ws://127.0.0.1:") {
		t.Fatalf("URL() = %q", h.URL())
	}
	if err := h.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil, want error")
	}

	conn := dialHub(t, h.URL())
	waitForClients(t, h, 1)

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() after Stop = %d, want 0", h.ClientCount())
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() after Stop succeeded, want closed connection")
	}
}
