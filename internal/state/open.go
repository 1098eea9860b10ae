package state

import (
	"context"
	"fmt"

	"signframes/internal/config"
	"signframes/internal/services"
)

// Open returns the store selected by the [state] section.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.State.Backend {
	case config.StateBackendJSON, "":
		return OpenJSON(cfg.Paths.StateFile)
	case config.StateBackendSQLite:
		return OpenSQLite(ctx, cfg.Paths.StateFile)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "state", "open",
			fmt.Sprintf("unknown backend %q", cfg.State.Backend), nil)
	}
}
