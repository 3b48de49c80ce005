package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestBroadcastBalanceReachesOwnerOnly(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	mine := &Client{send: make(chan []byte, 1)}
	other := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", mine)
	hub.Register("user-2", other)

	hub.BroadcastBalance("user-1", BalanceUpdate{AccountID: "acc-1", Balance: "85.00", Currency: "USD", BelowThreshold: true})

	select {
	case payload := <-mine.send:
		var update BalanceUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			t.Fatalf("unexpected payload: %v", err)
		}
		if update.Balance != "85.00" || !update.BelowThreshold {
			t.Fatalf("unexpected update: %#v", update)
		}
	default:
		t.Fatal("expected an update for user-1")
	}
	if len(other.send) != 0 {
		t.Fatal("user-2 must not receive user-1 updates")
	}
}

func TestBroadcastBalanceDropsWhenFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", client)
	hub.BroadcastBalance("user-1", BalanceUpdate{AccountID: "acc-1"})
	hub.BroadcastBalance("user-1", BalanceUpdate{AccountID: "acc-2"})
	if len(client.send) != 1 {
		t.Fatalf("expected a single buffered update, got %d", len(client.send))
	}
}

func TestUnregisterRemovesOwner(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", client)
	if hub.Subscribers("user-1") != 1 {
		t.Fatal("expected one subscriber")
	}
	hub.Unregister("user-1", client)
	hub.Unregister("user-1", client)
	if hub.Subscribers("user-1") != 0 {
		t.Fatal("expected no subscribers")
	}
}

func TestServeWSDeliversUpdates(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	upgrader := NewUpgrader([]string{"*"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(w, r, upgrader, hub, "user-1")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("user-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.BroadcastBalance("user-1", BalanceUpdate{AccountID: "acc-1", Balance: "10.00", Currency: "EUR"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update BalanceUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if update.AccountID != "acc-1" || update.Currency != "EUR" {
		t.Fatalf("unexpected update: %#v", update)
	}
}

func TestUpgraderRejectsUnknownOrigin(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://app.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	if upgrader.CheckOrigin(req) {
		t.Fatal("expected origin to be rejected")
	}
	req.Header.Set("Origin", "https://app.example")
	if !upgrader.CheckOrigin(req) {
		t.Fatal("expected origin to be accepted")
	}
}
