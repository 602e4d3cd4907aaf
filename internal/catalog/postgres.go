package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog reads the catalog tables from the shared Postgres instance.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresCatalog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect model catalog: %w", err)
	}
	return &PostgresCatalog{pool: pool}, nil
}

func (c *PostgresCatalog) ListEnabledModels(ctx context.Context) ([]Model, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id_model, model_name FROM whisper_models WHERE source = $1`, "whisper")
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

	idRows, err := c.pool.Query(ctx,
		`SELECT DISTINCT model_id FROM model_settings WHERE enabled = $1`, true)
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

func (c *PostgresCatalog) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *PostgresCatalog) Close() error {
	c.pool.Close()
	return nil
}
