package database

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			storage_key TEXT PRIMARY KEY,
			storage_value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	},
	selectOne: `SELECT storage_value FROM kv_store WHERE storage_key = ?`,
	upsert: `INSERT INTO kv_store (storage_key, storage_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(storage_key) DO UPDATE SET storage_value = excluded.storage_value, updated_at = excluded.updated_at`,
	delete: `DELETE FROM kv_store WHERE storage_key = ?`,
}

// NewSQLiteBackend creates a new SQLite backend.
func NewSQLiteBackend(path string) (*SQLBackend, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return openSQL("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000", sqliteDialect)
}
