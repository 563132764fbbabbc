// Package app wires the services, the messaging session and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"sales-collector/internal/api"
	"sales-collector/internal/config"
	"sales-collector/internal/dispatch"
	"sales-collector/internal/hub"
	"sales-collector/internal/ports"
	"sales-collector/internal/render"
	"sales-collector/internal/service"
	"sales-collector/internal/session"
)

// App is the main application container.
type App struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	session *session.Session
	hub     *hub.Hub
	server  *api.Server
}

// Options configures the App.
type Options struct {
	Config       *config.AppConfig
	Logger       *slog.Logger
	Store        ports.ReferenceStore
	Network      ports.ChatNetwork
	Cache        ports.PairingCache
	PolicyLoader ports.PolicyLoader
}

// New creates a new App with all dependencies injected.
func New(ctx context.Context, opts Options) (*App, error) {
	policy, err := opts.PolicyLoader.LoadNotifierPolicy(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notifier policy: %w", err)
	}
	if err := config.ValidateNotifierPolicy(policy); err != nil {
		return nil, err
	}

	logger := opts.Logger
	cfg := opts.Config

	sess := session.New(session.Options{
		Network: opts.Network,
		Cache:   opts.Cache,
		Policy:  policy.Session,
		Logger:  logger.With("component", "session"),
	})

	dispatcher := dispatch.New(
		sess,
		policy.Dispatch,
		cfg.WhatsApp.CountryCode,
		logger.With("component", "dispatcher"),
	)

	catalog := service.NewCatalog(opts.Store, policy.DefaultTemplate, logger.With("component", "catalog"))
	submissions := service.NewSubmissionService(
		opts.Store,
		catalog,
		render.New(cfg.Location(), nil),
		dispatcher,
		logger.With("component", "submissions"),
	)

	h := hub.New(logger.With("component", "hub"))

	server := api.New(api.Options{
		HTTP:        cfg.HTTP,
		Policy:      policy.Session,
		Session:     sess,
		Cache:       opts.Cache,
		Notifier:    dispatcher,
		Catalog:     catalog,
		Submissions: submissions,
		Store:       opts.Store,
		Hub:         h,
		Logger:      logger.With("component", "api"),
	})

	return &App{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		hub:     h,
		server:  server,
	}, nil
}

// Serve runs the HTTP server until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	go a.hub.Run(ctx)
	a.server.PublishSessionChanges(ctx)

	if a.session.Connect(ctx, false) {
		a.logger.Info("messaging session starting")
	}

	srv := &http.Server{
		Addr:    a.cfg.HTTP.Addr,
		Handler: a.server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			a.logger.Error("http server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.cfg.HTTP.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}

// HandleLambda serves one API Gateway request.
func (a *App) HandleLambda(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return a.server.HandleLambda(ctx, req)
}

// Close disconnects the messaging session, keeping its credentials.
func (a *App) Close() {
	a.session.Close()
}
