// Package catalog provides read-only access to the external model catalog:
// the set of whisper models an operator has enabled for this node.
package catalog

import (
	"context"
	"fmt"
)

// Model is one row of the catalog.
type Model struct {
	ID   int64
	Name string
}

// Catalog is the read-only collaborator the readiness registry loads from.
type Catalog interface {
	// ListEnabledModels returns the models that are both present in the
	// catalog and switched on in the settings table.
	ListEnabledModels(ctx context.Context) ([]Model, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds a Catalog for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Catalog, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "sqlite":
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q (supported: postgres, sqlite)", driver)
	}
}

// intersectEnabled keeps the catalog rows whose id appears in the enabled set.
func intersectEnabled(rows []Model, enabled map[int64]bool) []Model {
	out := make([]Model, 0, len(rows))
	for _, r := range rows {
		if enabled[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
