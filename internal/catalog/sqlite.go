package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCatalog serves the same catalog schema from a local SQLite file.
// Used for single-node deployments and tests.
type SQLiteCatalog struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) ListEnabledModels(ctx context.Context) ([]Model, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id_model, model_name FROM whisper_models WHERE source = ?`, "whisper")
	if err != nil {
		return nil, fmt.Errorf("query whisper_models: %w", err)
	}
	defer rows.Close()

	var all []Model
	for rows.Next() {
		var m Model
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan whisper_models row: %w", err)
		}
		all = append(all, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read whisper_models: %w", err)
	}

	idRows, err := c.db.QueryContext(ctx,
		`SELECT DISTINCT model_id FROM model_settings WHERE enabled = ?`, true)
	if err != nil {
		return nil, fmt.Errorf("query model_settings: %w", err)
	}
	defer idRows.Close()

	enabled := make(map[int64]bool)
	for idRows.Next() {
		var id int64
		if err := idRows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan model_settings row: %w", err)
		}
		enabled[id] = true
	}
	if err := idRows.Err(); err != nil {
		return nil, fmt.Errorf("read model_settings: %w", err)
	}

	return intersectEnabled(all, enabled), nil
}

func (c *SQLiteCatalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
