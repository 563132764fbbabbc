package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sales-collector/internal/session"
)

const storePingTimeout = 2 * time.Second

type statusResponse struct {
	Success  bool           `json:"success"`
	Redis    string         `json:"redis"`
	WhatsApp whatsappHealth `json:"whatsapp"`
}

type whatsappHealth struct {
	State      session.State `json:"state"`
	Connected  bool          `json:"connected"`
	Connecting bool          `json:"connecting"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// status reports reference store reachability and the messaging state.
func (s *Server) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storePingTimeout)
	defer cancel()

	redisState := "online"
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("reference store unreachable", "error", err)
		redisState = "offline"
	}

	c.JSON(http.StatusOK, statusResponse{
		Success: true,
		Redis:   redisState,
		WhatsApp: whatsappHealth{
			State:      s.session.State(),
			Connected:  s.session.IsOpen(),
			Connecting: s.session.IsConnecting(),
		},
	})
}
