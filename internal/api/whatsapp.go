package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"sales-collector/internal/session"
)

const qrImageSize = 256

// whatsappStatusResponse is the connection status shown by the admin UI.
type whatsappStatusResponse struct {
	Success    bool   `json:"success"`
	Connected  bool   `json:"connected"`
	QR         string `json:"qr"`
	QRImage    string `json:"qrImage,omitempty"`
	Connecting bool   `json:"connecting"`
	Message    string `json:"message"`
}

// sessionEvent is pushed to websocket subscribers.
type sessionEvent struct {
	State     session.State `json:"state"`
	Connected bool          `json:"connected"`
	QR        string        `json:"qr,omitempty"`
	QRImage   string        `json:"qrImage,omitempty"`
	At        time.Time     `json:"at"`
}

type testSendRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// whatsappStatus reports the connection and starts one when nothing is
// running. force=true tears the session down first and waits for a fresh
// code; wait=true only waits.
func (s *Server) whatsappStatus(c *gin.Context) {
	ctx := c.Request.Context()
	force := c.Query("force") == "true"
	wait, _ := strconv.ParseBool(c.Query("wait"))

	if force {
		s.logger.Info("force flag set, forcing new connection attempt")
		s.session.Connect(ctx, true)
		s.awaitPairing(ctx, s.policy.ForceConnectWait.ToDuration())
		c.JSON(http.StatusOK, s.statusResponse(false))
		return
	}

	if s.session.IsOpen() || s.session.IsConnecting() {
		c.JSON(http.StatusOK, s.statusResponse(false))
		return
	}

	// A cached code may be left over from an attempt that has ended, so it
	// never stops a restart.
	s.logger.Info("initiating connection")
	initiated := s.session.Connect(ctx, false)
	if initiated && wait {
		s.awaitPairing(ctx, s.policy.ForceConnectWait.ToDuration())
	}
	c.JSON(http.StatusOK, s.statusResponse(initiated))
}

func (s *Server) whatsappDelete(c *gin.Context) {
	s.logger.Info("deleting session")
	if !s.session.DeleteSession(c.Request.Context()) {
		c.JSON(http.StatusOK, messageResponse{Success: false, Message: "Failed to delete session"})
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Session deleted successfully"})
}

func (s *Server) whatsappTestSend(c *gin.Context) {
	var req testSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s.logger.Info("sending test message")
	receipt, err := s.notifier.Send(context.WithoutCancel(c.Request.Context()), req.To, req.Message, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, receipt)
}

// whatsappEvents upgrades to a websocket that receives every session change.
func (s *Server) whatsappEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	st := s.session.State()
	s.hub.Attach(conn, s.eventFor(session.StateChange{State: st, PairingCode: s.currentCode(), At: time.Now()}))
}

// PublishSessionChanges subscribes to the session and forwards every change
// to websocket clients until ctx is done.
func (s *Server) PublishSessionChanges(ctx context.Context) {
	changes, cancel := s.session.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				s.hub.Broadcast(s.eventFor(change))
			}
		}
	}()
}

func (s *Server) eventFor(change session.StateChange) sessionEvent {
	return sessionEvent{
		State:     change.State,
		Connected: change.State == session.StateOpen,
		QR:        change.PairingCode,
		QRImage:   s.qrImage(change.PairingCode),
		At:        change.At,
	}
}

func (s *Server) statusResponse(initiated bool) whatsappStatusResponse {
	connected := s.session.IsOpen()
	code := ""
	if !connected {
		code = s.currentCode()
	}

	resp := whatsappStatusResponse{
		Success:    true,
		Connected:  connected,
		QR:         code,
		QRImage:    s.qrImage(code),
		Connecting: !connected && (code != "" || s.session.IsConnecting()),
	}

	switch {
	case connected:
		resp.Message = "Connected"
	case code != "":
		resp.Message = "QR code available"
	case initiated || resp.Connecting:
		resp.Connecting = true
		resp.Message = "Connection initiated, QR code not yet available"
	default:
		resp.Message = "Not connected"
	}
	return resp
}

// currentCode returns the in-memory pairing code, falling back to the cache
// file written by whichever process holds the session.
func (s *Server) currentCode() string {
	if code := s.session.PairingCode(); code != "" {
		return code
	}
	if s.cache == nil || s.session.IsOpen() {
		return ""
	}
	code, err := s.cache.Load()
	if err != nil {
		s.logger.Warn("failed to read pairing code cache", "error", err)
		return ""
	}
	return code
}

// awaitPairing blocks until the session opens or shows a code, or max elapses.
func (s *Server) awaitPairing(ctx context.Context, max time.Duration) {
	changes, cancel := s.session.Subscribe()
	defer cancel()

	if s.session.IsOpen() || s.session.PairingCode() != "" {
		return
	}

	timer := time.NewTimer(max)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case change, ok := <-changes:
			if !ok || change.State == session.StateOpen || change.PairingCode != "" {
				return
			}
		}
	}
}

func (s *Server) qrImage(code string) string {
	if code == "" {
		return ""
	}
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		s.logger.Warn("failed to encode pairing code image", "error", err)
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
