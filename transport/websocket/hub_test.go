package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/manualdrive/game/engine"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, engine.WebSocketBufferSize),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(sessionID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients in %s, got %d", want, sessionID, hub.ClientCount(sessionID))
}

func TestNewHub(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || cap(hub.broadcast) != engine.WebSocketBufferSize {
		t.Error("Hub broadcast channel should be buffered")
	}
	if hub.register == nil || hub.unregister == nil || hub.counts == nil {
		t.Error("Hub channels not initialized")
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)

	hub.registerClient(client1)
	hub.registerClient(client2)
	if len(hub.sessions[sessionID]) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", len(hub.sessions[sessionID]))
	}

	hub.unregisterClient(client1)
	if len(hub.sessions[sessionID]) != 1 || !hub.sessions[sessionID][client2] {
		t.Error("Expected only client2 to remain")
	}
	if _, open := <-client1.send; open {
		t.Error("Expected client1 send channel to be closed")
	}

	hub.unregisterClient(client2)
	if _, exists := hub.sessions[sessionID]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}

	// Unregistering twice is a no-op
	hub.unregisterClient(client2)
}

func TestHubBroadcastToSession(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	watcher := newTestClient(hub, "watched")
	other := newTestClient(hub, "other")
	hub.registerClient(watcher)
	hub.registerClient(other)

	state := engine.NewVehicleState()
	state.EngineOn = true
	state.RPM = 800
	state.Status = engine.StatusEngineOnNeutral

	hub.BroadcastToSession("watched", state)
	hub.broadcastMessage(<-hub.broadcast)

	select {
	case data := <-watcher.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.SessionID != "watched" || message.Event != EventStateUpdate {
			t.Errorf("Unexpected message header %+v", message)
		}
		if message.Snapshot == nil || message.Snapshot.RPM != "800 RPM" || message.Snapshot.Gear != "N" {
			t.Errorf("Snapshot not correctly transmitted: %+v", message.Snapshot)
		}
		if message.State == nil || !message.State.EngineOn {
			t.Errorf("State not correctly transmitted: %+v", message.State)
		}
	default:
		t.Error("No message delivered to watcher")
	}

	select {
	case <-other.send:
		t.Error("Message leaked to another session")
	default:
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.BroadcastEvent("event-test", "stall", "Engine stalled!")

	message := <-hub.broadcast
	if message.SessionID != "event-test" || message.Event != "stall" || message.Data != "Engine stalled!" {
		t.Errorf("Unexpected message %+v", message)
	}
}

func TestHubBroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	for i := 0; i < engine.WebSocketBufferSize+10; i++ {
		hub.BroadcastEvent("busy", "tick", i)
	}
	if len(hub.broadcast) != engine.WebSocketBufferSize {
		t.Errorf("Expected a full queue, got %d", len(hub.broadcast))
	}
}

func TestHubSlowClientIsDropped(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: "tick"})
	if _, exists := hub.sessions["slow"]; exists {
		t.Error("Expected the blocked client to be unregistered")
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	hub := startHub(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=ws-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, "ws-test", 1)

	state := engine.NewVehicleState()
	state.Speed = 42
	hub.BroadcastToSession("ws-test", state)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.Snapshot == nil || message.Snapshot.Speed != "42.0 km/h" {
		t.Errorf("Unexpected snapshot %+v", message.Snapshot)
	}

	conn.Close()
	waitForClients(t, hub, "ws-test", 0)
}
