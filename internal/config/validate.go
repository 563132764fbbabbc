package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate validates the application configuration.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http address is required"))
	}

	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http shutdown timeout must be positive"))
	}

	if c.Redis.Addr == "" && len(c.Redis.SentinelAddrs) == 0 {
		errs = append(errs, errors.New("redis address is required"))
	}

	if c.Redis.DialTimeout <= 0 {
		errs = append(errs, errors.New("redis dial timeout must be positive"))
	}

	if len(c.Redis.SentinelAddrs) > 0 && c.Redis.MasterName == "" {
		errs = append(errs, errors.New("redis sentinel requires a master name"))
	}

	switch c.WhatsApp.Driver {
	case DriverWhatsmeow, DriverLog:
	default:
		errs = append(errs, fmt.Errorf("unknown whatsapp driver %q", c.WhatsApp.Driver))
	}

	switch c.WhatsApp.StoreMode {
	case StoreMemory, StoreFile:
	default:
		errs = append(errs, fmt.Errorf("unknown whatsapp store mode %q", c.WhatsApp.StoreMode))
	}

	if c.WhatsApp.StoreMode == StoreFile && c.WhatsApp.AuthDir == "" {
		errs = append(errs, errors.New("whatsapp auth dir is required for file store"))
	}

	if !isDigits(c.WhatsApp.CountryCode) {
		errs = append(errs, fmt.Errorf("whatsapp country code %q must be digits", c.WhatsApp.CountryCode))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// ValidateNotifierPolicy validates a notifier policy profile.
func ValidateNotifierPolicy(p *NotifierPolicy) error {
	var errs []error

	if p.Session.ConnectCooldown < 0 {
		errs = append(errs, errors.New("session.connect_cooldown must not be negative"))
	}

	if p.Session.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("session.reconnect_delay must be positive"))
	}

	if p.Session.MaxReconnects < 0 {
		errs = append(errs, errors.New("session.max_reconnects must not be negative"))
	}

	if p.Dispatch.MaxAttempts <= 0 {
		errs = append(errs, errors.New("dispatch.max_attempts must be positive"))
	}

	if p.Dispatch.ImageAttempts <= 0 {
		errs = append(errs, errors.New("dispatch.image_attempts must be positive"))
	}

	if p.Dispatch.RetryDelay < 0 || p.Dispatch.ImageRetryDelay < 0 || p.Dispatch.ImageGap < 0 || p.Dispatch.SettleDelay < 0 {
		errs = append(errs, errors.New("dispatch delays must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("notifier policy validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
