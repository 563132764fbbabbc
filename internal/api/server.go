// Package api exposes the form, admin and connection endpoints over gin.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sales-collector/internal/config"
	"sales-collector/internal/hub"
	"sales-collector/internal/ports"
	"sales-collector/internal/service"
	"sales-collector/internal/session"
)

// Session is the messaging session as seen by the handlers.
type Session interface {
	ports.MessagingSession
	State() session.State
	Subscribe() (<-chan session.StateChange, func())
}

// Pinger reports reachability of the reference store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the Server.
type Options struct {
	HTTP        config.HTTPConfig
	Policy      config.SessionPolicy
	Session     Session
	Cache       ports.PairingCache
	Notifier    ports.Notifier
	Catalog     *service.Catalog
	Submissions *service.SubmissionService
	Store       Pinger
	Hub         *hub.Hub
	Logger      *slog.Logger
}

// Server holds the handlers and the gin engine.
type Server struct {
	http        config.HTTPConfig
	policy      config.SessionPolicy
	session     Session
	cache       ports.PairingCache
	notifier    ports.Notifier
	catalog     *service.Catalog
	submissions *service.SubmissionService
	store       Pinger
	hub         *hub.Hub
	upgrader    websocket.Upgrader
	logger      *slog.Logger
	engine      *gin.Engine
}

// New creates a Server and builds its routes.
func New(opts Options) *Server {
	if len(opts.HTTP.AllowedOrigins) == 0 {
		opts.HTTP.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		http:        opts.HTTP,
		policy:      opts.Policy,
		session:     opts.Session,
		cache:       opts.Cache,
		notifier:    opts.Notifier,
		catalog:     opts.Catalog,
		submissions: opts.Submissions,
		store:       opts.Store,
		hub:         opts.Hub,
		logger:      opts.Logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger))
	r.Use(recovery(s.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.http.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: !allowsAnyOrigin(s.http.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/status", s.status)

		api.GET("/whatsapp", s.whatsappStatus)
		api.DELETE("/whatsapp", s.whatsappDelete)
		api.POST("/whatsapp", s.whatsappTestSend)
		api.GET("/whatsapp/ws", s.whatsappEvents)

		api.GET("/sales", s.listSalesNames)
		api.POST("/sales/login", s.salesLogin)
		api.POST("/sales/submit", s.submit)
		api.GET("/outlets", s.listOutlets)
		api.GET("/products", s.listProducts)

		admin := api.Group("/admin")
		admin.GET("/sales", s.adminListSales)
		admin.POST("/sales", s.adminAddSales)
		admin.DELETE("/sales/:id", s.adminDeleteSales)
		admin.DELETE("/sales", s.adminResetSales)
		admin.GET("/outlets", s.listOutlets)
		admin.POST("/outlets", s.adminAddOutlet)
		admin.DELETE("/outlets/:id", s.adminDeleteOutlet)
		admin.DELETE("/outlets", s.adminResetOutlets)
		admin.GET("/products", s.listProducts)
		admin.POST("/products", s.adminAddProduct)
		admin.DELETE("/products/:id", s.adminDeleteProduct)
		admin.DELETE("/products", s.adminResetProducts)
		admin.GET("/settings", s.adminGetSettings)
		admin.PUT("/settings", s.adminPutSettings)
	}

	return r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || allowsAnyOrigin(s.http.AllowedOrigins) {
		return true
	}
	for _, allowed := range s.http.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	s.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
