package hub

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func startHub(t *testing.T, greeting any) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := New(newTestLogger())
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Attach(conn, greeting)
	}))
	t.Cleanup(srv.Close)

	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count mismatch: got %d, want %d", h.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_GreetingThenBroadcast(t *testing.T) {
	h, url := startHub(t, map[string]string{"state": "idle"})
	conn := dial(t, url)
	waitClients(t, h, 1)

	var greeting map[string]string
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting failed: %v", err)
	}
	if greeting["state"] != "idle" {
		t.Errorf("greeting mismatch: got %v", greeting)
	}

	h.Broadcast(map[string]string{"state": "open"})

	var update map[string]string
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update failed: %v", err)
	}
	if update["state"] != "open" {
		t.Errorf("update mismatch: got %v", update)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h, url := startHub(t, nil)
	a := dial(t, url)
	b := dial(t, url)
	waitClients(t, h, 2)

	h.Broadcast(map[string]int{"n": 1})

	for _, conn := range []*websocket.Conn{a, b} {
		var msg map[string]int
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if msg["n"] != 1 {
			t.Errorf("message mismatch: got %v", msg)
		}
	}
}

func TestHub_ClientCloseUnregisters(t *testing.T) {
	h, url := startHub(t, nil)
	conn := dial(t, url)
	waitClients(t, h, 1)

	conn.Close()
	waitClients(t, h, 0)
}
