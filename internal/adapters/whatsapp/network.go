// Package whatsapp adapts whatsmeow to the chat client ports.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"sales-collector/internal/config"
	"sales-collector/internal/logging"
	"sales-collector/internal/ports"
)

const (
	deviceOS     = "Sales Collector"
	memoryDSN    = "file:whatsmeow?mode=memory&cache=shared&_foreign_keys=on"
	fileDSN      = "file:%s?_foreign_keys=on"
	databaseFile = "whatsmeow.db"
)

// Network creates whatsmeow clients bound to the device stored in sqlite.
type Network struct {
	container *sqlstore.Container
	logger    *slog.Logger
	waLogger  waLog.Logger
}

var _ ports.ChatNetwork = (*Network)(nil)

// NewNetwork opens the credential store, in memory or under the auth dir.
func NewNetwork(ctx context.Context, cfg config.WhatsAppConfig, logger *slog.Logger) (*Network, error) {
	dsn := memoryDSN
	if cfg.StoreMode == config.StoreFile {
		if err := os.MkdirAll(cfg.AuthDir, 0o700); err != nil {
			return nil, fmt.Errorf("create auth dir: %w", err)
		}
		dsn = fmt.Sprintf(fileDSN, filepath.Join(cfg.AuthDir, databaseFile))
	}

	waLogger := logging.NewWALogger(logger, "whatsmeow")
	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLogger.Sub("Database"))
	if err != nil {
		return nil, fmt.Errorf("open whatsmeow store: %w", err)
	}

	store.DeviceProps.Os = proto.String(deviceOS)

	logger.Info("credential store ready", "mode", cfg.StoreMode)

	return &Network{
		container: container,
		logger:    logger,
		waLogger:  waLogger,
	}, nil
}

// NewClient builds a client for the stored device, or a fresh device that
// still has to be paired.
func (n *Network) NewClient(ctx context.Context) (ports.ChatClient, error) {
	device, err := n.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	wa := whatsmeow.NewClient(device, n.waLogger.Sub("Client"))
	wa.EnableAutoReconnect = false

	return newClient(wa, n.logger), nil
}

// Reset deletes every stored device so the next client has to pair again.
func (n *Network) Reset(ctx context.Context) error {
	devices, err := n.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	var errs []error
	for _, d := range devices {
		if d.ID == nil {
			continue
		}
		if err := d.Delete(ctx); err != nil {
			errs = append(errs, fmt.Errorf("delete device %s: %w", d.ID, err))
		}
	}
	return errors.Join(errs...)
}
