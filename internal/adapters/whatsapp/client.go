package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"sales-collector/internal/domain"
	"sales-collector/internal/ports"
)

// QR channel events.
const (
	qrEventCode    = "code"
	qrEventSuccess = "success"
	qrEventTimeout = "timeout"
)

var errPairingTimeout = errors.New("pairing code timed out")

// Client is one whatsmeow connection.
type Client struct {
	wa     *whatsmeow.Client
	logger *slog.Logger

	mu     sync.Mutex
	events chan ports.ClientEvent
	closed bool
}

var _ ports.ChatClient = (*Client)(nil)

func newClient(wa *whatsmeow.Client, logger *slog.Logger) *Client {
	c := &Client{
		wa:     wa,
		logger: logger,
		events: make(chan ports.ClientEvent, 16),
	}
	wa.AddEventHandler(c.handleEvent)
	return c
}

// Connect dials the network. Unpaired devices start streaming pairing codes.
func (c *Client) Connect(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		qrChan, err := c.wa.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}
		go c.forwardQR(qrChan)
	}

	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connect: %w", classify(err))
	}
	return nil
}

// Disconnect closes the socket and the events channel.
func (c *Client) Disconnect() {
	c.wa.RemoveEventHandlers()
	c.wa.Disconnect()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// Logout unlinks this device from the phone.
func (c *Client) Logout(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		return nil
	}
	return c.wa.Logout(ctx)
}

// SendText sends a plain conversation message.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	jid, err := types.ParseJID(to)
	if err != nil {
		return "", domain.NewValidationError("to", err.Error())
	}

	resp, err := c.wa.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", classify(err))
	}
	return string(resp.ID), nil
}

// SendImage uploads the image and sends it with an optional caption.
func (c *Client) SendImage(ctx context.Context, to string, img ports.Image) (string, error) {
	jid, err := types.ParseJID(to)
	if err != nil {
		return "", domain.NewValidationError("to", err.Error())
	}

	uploaded, err := c.wa.Upload(ctx, img.Data, whatsmeow.MediaImage)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", classify(err))
	}

	imageMsg := &waE2E.ImageMessage{
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		MediaKey:      uploaded.MediaKey,
		Mimetype:      proto.String(img.MimeType),
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    proto.Uint64(uint64(len(img.Data))),
	}
	if img.Caption != "" {
		imageMsg.Caption = proto.String(img.Caption)
	}

	resp, err := c.wa.SendMessage(ctx, jid, &waE2E.Message{ImageMessage: imageMsg})
	if err != nil {
		return "", fmt.Errorf("send image: %w", classify(err))
	}
	return string(resp.ID), nil
}

// Events streams connection updates.
func (c *Client) Events() <-chan ports.ClientEvent {
	return c.events
}

func (c *Client) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case qrEventCode:
			c.emit(ports.ClientEvent{Type: ports.EventPairingCode, Code: item.Code})
		case qrEventSuccess:
			c.logger.Info("pairing succeeded")
		case qrEventTimeout:
			c.emit(ports.ClientEvent{Type: ports.EventClosed, Err: errPairingTimeout})
		default:
			err := item.Error
			if err == nil {
				err = fmt.Errorf("pairing failed: %s", item.Event)
			}
			c.emit(ports.ClientEvent{Type: ports.EventClosed, Err: err})
		}
	}
}

func (c *Client) handleEvent(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		c.emit(ports.ClientEvent{Type: ports.EventOpen})

	case *events.PairSuccess:
		c.logger.Info("device paired", "jid", evt.ID.String())

	case *events.LoggedOut:
		c.emit(ports.ClientEvent{
			Type: ports.EventLoggedOut,
			Err:  fmt.Errorf("%w: %s", domain.ErrLoggedOut, evt.Reason.String()),
		})

	case *events.ConnectFailure:
		if evt.Reason.IsLoggedOut() {
			c.emit(ports.ClientEvent{
				Type: ports.EventLoggedOut,
				Err:  fmt.Errorf("%w: %s", domain.ErrLoggedOut, evt.Reason.String()),
			})
			return
		}
		c.emit(ports.ClientEvent{
			Type: ports.EventClosed,
			Err:  fmt.Errorf("connect failure: %s %s", evt.Reason.String(), evt.Message),
		})

	case *events.StreamReplaced:
		c.emit(ports.ClientEvent{Type: ports.EventClosed, Err: fmt.Errorf("%w: stream replaced", domain.ErrConnectionClosed)})

	case *events.StreamError:
		c.emit(ports.ClientEvent{Type: ports.EventClosed, Err: fmt.Errorf("stream errored: %s", evt.Code)})

	case *events.Disconnected:
		c.emit(ports.ClientEvent{Type: ports.EventClosed, Err: domain.ErrConnectionClosed})

	case *events.TemporaryBan:
		c.emit(ports.ClientEvent{Type: ports.EventClosed, Err: fmt.Errorf("temporary ban: %v", evt)})

	case *events.KeepAliveTimeout:
		c.logger.Debug("keepalive timeout", "error_count", evt.ErrorCount)
	}
}

// emit never blocks the whatsmeow event loop; a full buffer drops the event.
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

// classify marks errors that mean the socket is gone.
func classify(err error) error {
	if errors.Is(err, whatsmeow.ErrNotConnected) {
		return fmt.Errorf("%w: %v", domain.ErrConnectionClosed, err)
	}
	return err
}
