package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	name       string
	migrations []string
	selectOne  string
	upsert     string
	delete     string
}

// SQLBackend implements Backend on a database/sql connection.
type SQLBackend struct {
	db      *sql.DB
	dialect dialect
}

func openSQL(driver, dsn string, d dialect) (*SQLBackend, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	backend := &SQLBackend{db: db, dialect: d}
	if err := backend.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return backend, nil
}

// Name returns the SQL dialect name.
func (s *SQLBackend) Name() string {
	return s.dialect.name
}

// Migrate runs database migrations.
func (s *SQLBackend) Migrate() error {
	for _, m := range s.dialect.migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLBackend) Close() error {
	return s.db.Close()
}

// Get reads keys inside one transaction so the values form a consistent snapshot.
func (s *SQLBackend) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.selectOne)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		var value string
		err := stmt.QueryRowContext(ctx, k).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		out[k] = []byte(value)
	}
	return out, tx.Commit()
}

// Commit applies every write of b in a single transaction.
func (s *SQLBackend) Commit(ctx context.Context, b Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for k, v := range b {
		if v == nil {
			if _, err := tx.ExecContext(ctx, s.dialect.delete, k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, s.dialect.upsert, k, string(v), now); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}

	return tx.Commit()
}
