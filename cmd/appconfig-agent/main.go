// Command appconfig-agent serves notifier profiles from a local directory
// for development without the AWS AppConfig agent.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-collector/internal/adapters/appconfig"
	"sales-collector/internal/logging"
)

const (
	defaultPort       = "2772"
	defaultConfigsDir = "configs"
)

func main() {
	logger := logging.New(logging.DefaultConfig())

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	dir := os.Getenv("CONFIGS_DIR")
	if dir == "" {
		dir = defaultConfigsDir
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           appconfig.NewProfileServer(dir, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving notifier profiles", "port", port, "dir", dir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
