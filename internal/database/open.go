package database

import "fmt"

// Open creates the backend named by driver. dsn is a file path for sqlite and
// a connection string for postgres and mysql; it is ignored for memory.
func Open(driver, dsn string) (Backend, error) {
	switch driver {
	case "memory":
		return NewMemoryBackend(), nil
	case "sqlite":
		return NewSQLiteBackend(dsn)
	case "postgres":
		return NewPostgresBackend(dsn)
	case "mysql":
		return NewMySQLBackend(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
