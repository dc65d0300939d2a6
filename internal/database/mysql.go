package database

import (
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			storage_key VARCHAR(191) NOT NULL PRIMARY KEY,
			storage_value LONGTEXT NOT NULL,
			updated_at DATETIME(6) NOT NULL
		) CHARACTER SET utf8mb4`,
	},
	selectOne: `SELECT storage_value FROM kv_store WHERE storage_key = ?`,
	upsert: `INSERT INTO kv_store (storage_key, storage_value, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE storage_value = VALUES(storage_value), updated_at = VALUES(updated_at)`,
	delete: `DELETE FROM kv_store WHERE storage_key = ?`,
}

// NewMySQLBackend connects to MySQL. parseTime is forced on so DATETIME
// columns scan into time values.
func NewMySQLBackend(dsn string) (*SQLBackend, error) {
	if !strings.Contains(dsn, "parseTime=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "parseTime=true&charset=utf8mb4&loc=UTC"
	}
	return openSQL("mysql", dsn, mysqlDialect)
}
