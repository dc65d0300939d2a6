package database

import (
	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name: "postgres",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			storage_key TEXT PRIMARY KEY,
			storage_value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	},
	selectOne: `SELECT storage_value FROM kv_store WHERE storage_key = $1`,
	upsert: `INSERT INTO kv_store (storage_key, storage_value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (storage_key) DO UPDATE SET storage_value = EXCLUDED.storage_value, updated_at = EXCLUDED.updated_at`,
	delete: `DELETE FROM kv_store WHERE storage_key = $1`,
}

// NewPostgresBackend connects to PostgreSQL using a lib/pq connection URL.
func NewPostgresBackend(url string) (*SQLBackend, error) {
	return openSQL("postgres", url, postgresDialect)
}
