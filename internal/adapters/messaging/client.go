// Package messaging provides a chat network that logs messages instead of
// sending them. It pairs itself on first connect and is used for local
// development and tests of the HTTP surface.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"sales-collector/internal/ports"
)

// Network hands out logging clients that share one pairing flag.
type Network struct {
	logger *slog.Logger

	mu     sync.Mutex
	paired bool
}

var _ ports.ChatNetwork = (*Network)(nil)

// NewNetwork creates a logging network.
func NewNetwork(logger *slog.Logger) *Network {
	return &Network{logger: logger}
}

// NewClient creates a client for the current credentials.
func (n *Network) NewClient(ctx context.Context) (ports.ChatClient, error) {
	return &Client{
		network: n,
		logger:  n.logger,
		events:  make(chan ports.ClientEvent, 4),
	}, nil
}

// Reset forgets the pairing.
func (n *Network) Reset(ctx context.Context) error {
	n.mu.Lock()
	n.paired = false
	n.mu.Unlock()
	n.logger.Info("credentials reset")
	return nil
}

func (n *Network) pair() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	wasPaired := n.paired
	n.paired = true
	return wasPaired
}

// Client implements ports.ChatClient.
// It logs outgoing messages instead of sending them.
type Client struct {
	network *Network
	logger  *slog.Logger

	mu     sync.Mutex
	events chan ports.ClientEvent
	closed bool
}

// Connect reports a pairing code the first time, then opens.
func (c *Client) Connect(ctx context.Context) error {
	if !c.network.pair() {
		c.emit(ports.ClientEvent{Type: ports.EventPairingCode, Code: "2@" + uuid.NewString()})
	}
	c.emit(ports.ClientEvent{Type: ports.EventOpen})
	c.logger.Info("log client connected")
	return nil
}

// Disconnect closes the events channel.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// Logout forgets the pairing.
func (c *Client) Logout(ctx context.Context) error {
	return c.network.Reset(ctx)
}

// SendText logs the message payload.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	id := uuid.NewString()
	c.logPayload("sending message", id, map[string]any{
		"to":   to,
		"type": "text",
		"text": map[string]any{"body": text},
	})
	return id, nil
}

// SendImage logs the image metadata, not the bytes.
func (c *Client) SendImage(ctx context.Context, to string, img ports.Image) (string, error) {
	id := uuid.NewString()
	c.logPayload("sending image", id, map[string]any{
		"to":   to,
		"type": "image",
		"image": map[string]any{
			"mimetype": img.MimeType,
			"size":     len(img.Data),
			"caption":  img.Caption,
		},
	})
	return id, nil
}

// Events streams connection updates.
func (c *Client) Events() <-chan ports.ClientEvent {
	return c.events
}

func (c *Client) emit(ev ports.ClientEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("dropping client event, buffer full", "event", ev.Type.String())
	}
}

func (c *Client) logPayload(msg, id string, payload map[string]any) {
	c.logger.Info(msg, "to", payload["to"], "message_id", id)

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		c.logger.Debug("message payload not encodable", "error", err)
		return
	}
	c.logger.Debug("message payload", "payload", string(data))
}
