package catalog_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperd/internal/catalog"
)

func seedCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE whisper_models (
			id_model   INTEGER PRIMARY KEY,
			model_name TEXT NOT NULL,
			source     TEXT NOT NULL
		);
		CREATE TABLE model_settings (
			model_id INTEGER NOT NULL,
			enabled  BOOLEAN NOT NULL
		);

		INSERT INTO whisper_models VALUES (1, 'base', 'whisper');
		INSERT INTO whisper_models VALUES (2, 'small', 'whisper');
		INSERT INTO whisper_models VALUES (3, 'large-v3', 'whisper');
		INSERT INTO whisper_models VALUES (4, 'gpt-4o-transcribe', 'openai');

		INSERT INTO model_settings VALUES (1, 1);
		INSERT INTO model_settings VALUES (2, 0);
		INSERT INTO model_settings VALUES (3, 1);
		INSERT INTO model_settings VALUES (4, 1);
	`)
	require.NoError(t, err)
	return path
}

func TestSQLiteCatalogListEnabledModels(t *testing.T) {
	path := seedCatalog(t)

	cat, err := catalog.Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	defer cat.Close()

	require.NoError(t, cat.Ping(context.Background()))

	rows, err := cat.ListEnabledModels(context.Background())
	require.NoError(t, err)

	// Only whisper-source models with enabled settings: base and large-v3.
	// small is disabled; the openai row has the wrong source.
	require.Len(t, rows, 2)
	assert.Equal(t, catalog.Model{ID: 1, Name: "base"}, rows[0])
	assert.Equal(t, catalog.Model{ID: 3, Name: "large-v3"}, rows[1])
}

func TestSQLiteCatalogEmptyResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE whisper_models (id_model INTEGER, model_name TEXT, source TEXT);
		CREATE TABLE model_settings (model_id INTEGER, enabled BOOLEAN);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cat, err := catalog.Open(context.Background(), "sqlite", path)
	require.NoError(t, err)
	defer cat.Close()

	rows, err := cat.ListEnabledModels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := catalog.Open(context.Background(), "mysql", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported catalog driver")
}
