package ports

import (
	"context"

	"sales-collector/internal/domain"
)

// ClientEventType identifies what a chat client reported.
type ClientEventType int

const (
	// EventPairingCode carries a fresh pairing code to present to the user.
	EventPairingCode ClientEventType = iota
	// EventOpen means the session is authenticated and usable.
	EventOpen
	// EventClosed means the connection dropped for a retryable reason.
	EventClosed
	// EventLoggedOut means the credentials were revoked.
	EventLoggedOut
)

func (t ClientEventType) String() string {
	switch t {
	case EventPairingCode:
		return "pairing_code"
	case EventOpen:
		return "open"
	case EventClosed:
		return "closed"
	case EventLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// ClientEvent is a connection update emitted by a ChatClient.
type ClientEvent struct {
	Type ClientEventType
	Code string
	Err  error
}

// Image is one attachment ready to upload.
type Image struct {
	Data     []byte
	MimeType string
	Caption  string
}

// ChatClient is a single connection to the chat network.
type ChatClient interface {
	// Connect starts the connection. Progress is reported through Events.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and keeps the credentials.
	Disconnect()

	// Logout revokes the credentials on the network side.
	Logout(ctx context.Context) error

	// SendText delivers a text message and returns its id.
	SendText(ctx context.Context, to, text string) (string, error)

	// SendImage uploads and delivers one image and returns its id.
	SendImage(ctx context.Context, to string, img Image) (string, error)

	// Events streams connection updates. It is closed after Disconnect.
	Events() <-chan ClientEvent
}

// ChatNetwork creates clients bound to the locally stored credentials.
type ChatNetwork interface {
	// NewClient builds a client for the current device credentials.
	NewClient(ctx context.Context) (ChatClient, error)

	// Reset discards the stored credentials.
	Reset(ctx context.Context) error
}

// MessagingSession is the process-wide connection to the chat network.
type MessagingSession interface {
	Connect(ctx context.Context, force bool) bool
	Reconnect(ctx context.Context) bool
	DeleteSession(ctx context.Context) bool
	IsOpen() bool
	IsConnecting() bool
	PairingCode() string
	SendText(ctx context.Context, to, text string) (string, error)
	SendImage(ctx context.Context, to string, img Image) (string, error)
}

// PairingCache mirrors the current pairing code outside the process.
type PairingCache interface {
	Save(code string) error
	Load() (string, error)
	Clear() error
}

// TemplateRenderer turns a template and a submission into message text.
type TemplateRenderer interface {
	Render(template string, sub *domain.EnrichedSubmission) string
}

// Notifier delivers one rendered notification with optional images.
type Notifier interface {
	Send(ctx context.Context, destination, text string, images []string) (*domain.Receipt, error)
}
