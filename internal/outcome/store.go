package outcome

import (
	"fmt"

	"github.com/trial-eligibility-engine/internal/domain"
)

// Open returns the store selected by cfg, or nil when no driver is configured.
func Open(cfg domain.OutcomeConfig) (Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		store, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStoreFromURL(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported outcome driver %q", cfg.Driver)
	}
}
