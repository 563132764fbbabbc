// Package appconfig loads the notifier policy from the AWS AppConfig agent
// or from a local YAML file.
package appconfig

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"sales-collector/internal/config"
	"sales-collector/internal/ports"
)

// Loader implements ports.PolicyLoader.
type Loader struct {
	httpClient *http.Client
	endpoint   string
	profile    string
	file       string
	logger     *slog.Logger
	cache      *config.NotifierPolicy
	mu         sync.RWMutex
}

var _ ports.PolicyLoader = (*Loader)(nil)

// NewLoader creates a loader. The AppConfig endpoint wins over the file;
// with neither set the built-in defaults are returned.
func NewLoader(cfg config.AppConfigSettings, notifier config.NotifierSettings, logger *slog.Logger) *Loader {
	return &Loader{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoint: cfg.Endpoint,
		profile:  cfg.Profile,
		file:     notifier.PolicyFile,
		logger:   logger,
	}
}

// LoadNotifierPolicy returns the notifier policy, loading it once.
func (l *Loader) LoadNotifierPolicy(ctx context.Context) (*config.NotifierPolicy, error) {
	l.mu.RLock()
	if l.cache != nil {
		cached := l.cache
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cache != nil {
		return l.cache, nil
	}

	var (
		data   []byte
		source string
		err    error
	)
	switch {
	case l.endpoint != "":
		source = "appconfig"
		data, err = l.loadProfile(ctx, l.profile)
	case l.file != "":
		source = "file"
		data, err = os.ReadFile(l.file)
	default:
		l.cache = config.DefaultNotifierPolicy()
		l.logger.Debug("using default notifier policy")
		return l.cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notifier policy from %s: %w", source, err)
	}

	policy, err := config.ParseNotifierPolicy(data)
	if err != nil {
		return nil, err
	}

	l.cache = policy
	l.logger.Debug("loaded notifier policy", "source", source)

	return policy, nil
}

// loadProfile fetches a configuration profile from AppConfig.
func (l *Loader) loadProfile(ctx context.Context, profile string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s.yaml", l.endpoint, profile)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			l.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config not found: %s (status %d)", profile, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ClearCache forgets the loaded policy.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = nil
}
