package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNotificationTemplate is used when the store holds no template.
const DefaultNotificationTemplate = `*NOTIF ORDER BARU*
Date: {date}
===============
Sales: {sales_name}
Outlet: {outlet_name}
Address: {address}
===============
Order Type: {order_type}
Outlet Type: {outlet_type}
Tax Type: {tax_type}
Customer Type: {customer_category}
===============
Products:
{products_list}
Total: {total_amount}
===============
Bonus: {bonus}
Billing Status: {billing_status}
Alasan: {alasan_tidak_tertagih}
===============
Lokasi Gambar: {images_locations}

Lokasi Submit: {submit_location}`

// NotifierPolicy holds the timing and retry constants of the notifier.
type NotifierPolicy struct {
	Session         SessionPolicy  `yaml:"session"`
	Dispatch        DispatchPolicy `yaml:"dispatch"`
	DefaultTemplate string         `yaml:"default_template"`
}

// SessionPolicy controls connection attempts of the messaging session.
type SessionPolicy struct {
	ConnectCooldown  Duration `yaml:"connect_cooldown"`
	ReconnectDelay   Duration `yaml:"reconnect_delay"`
	MaxReconnects    int      `yaml:"max_reconnects"`
	ForceConnectWait Duration `yaml:"force_connect_wait"`
}

// DispatchPolicy controls notification delivery retries.
type DispatchPolicy struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	RetryDelay      Duration `yaml:"retry_delay"`
	ImageAttempts   int      `yaml:"image_attempts"`
	ImageRetryDelay Duration `yaml:"image_retry_delay"`
	ImageGap        Duration `yaml:"image_gap"`
	SettleDelay     Duration `yaml:"settle_delay"`
}

// Duration is a time.Duration written as "30s" or "1m" in YAML.
type Duration time.Duration

// ToDuration converts to a standard time.Duration.
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML parses Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// DefaultNotifierPolicy returns the built-in policy.
func DefaultNotifierPolicy() *NotifierPolicy {
	return &NotifierPolicy{
		Session: SessionPolicy{
			ConnectCooldown:  Duration(30 * time.Second),
			ReconnectDelay:   Duration(5 * time.Second),
			MaxReconnects:    5,
			ForceConnectWait: Duration(3 * time.Second),
		},
		Dispatch: DispatchPolicy{
			MaxAttempts:     3,
			RetryDelay:      Duration(2 * time.Second),
			ImageAttempts:   3,
			ImageRetryDelay: Duration(2 * time.Second),
			ImageGap:        Duration(2 * time.Second),
			SettleDelay:     Duration(3 * time.Second),
		},
		DefaultTemplate: DefaultNotificationTemplate,
	}
}

// ParseNotifierPolicy decodes a YAML profile over the defaults.
func ParseNotifierPolicy(data []byte) (*NotifierPolicy, error) {
	policy := DefaultNotifierPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse notifier policy: %w", err)
	}
	if policy.DefaultTemplate == "" {
		policy.DefaultTemplate = DefaultNotificationTemplate
	}
	if err := ValidateNotifierPolicy(policy); err != nil {
		return nil, err
	}
	return policy, nil
}
