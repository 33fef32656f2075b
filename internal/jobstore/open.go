package jobstore

import (
	"context"
	"fmt"

	"dubber/internal/config"
)

// OpenFromConfig opens the backend selected by store.backend.
func OpenFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return Open(cfg)
	case "redis":
		return OpenRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
