// Package hub fans JSON updates out to connected websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Hub tracks websocket clients and broadcasts to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
	logger     *slog.Logger
}

// New creates a Hub. Run must be started before clients attach.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("websocket client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.logger.Debug("websocket client disconnected", "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("websocket client too slow, dropping")
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
}

// Broadcast sends v as JSON to every client.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Attach registers conn, sends greeting to it first when non-nil, and starts
// its pumps. It returns once the client is registered.
func (h *Hub) Attach(conn *websocket.Conn, greeting any) {
	client := newClient(h, conn)

	if greeting != nil {
		if err := client.queueJSON(greeting); err != nil {
			h.logger.Warn("failed to encode greeting", "error", err)
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
