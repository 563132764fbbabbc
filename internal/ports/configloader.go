package ports

import (
	"context"

	"sales-collector/internal/config"
)

// PolicyLoader loads the notifier policy profile.
type PolicyLoader interface {
	// LoadNotifierPolicy returns the policy merged over built-in defaults.
	LoadNotifierPolicy(ctx context.Context) (*config.NotifierPolicy, error)
}
