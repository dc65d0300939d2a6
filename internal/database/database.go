// Package database provides the durable key/value medium behind the response store.
//
// Every value is a JSON document addressed by a short key. Commit applies a
// whole batch in one transaction so readers never observe a partial write.
package database

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("database: backend closed")

// Batch maps keys to their new values. A nil value deletes the key.
type Batch map[string][]byte

// Backend defines the interface for data persistence.
type Backend interface {
	// Get returns the stored values for keys. Missing keys are omitted.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)

	// Commit applies every write in b atomically.
	Commit(ctx context.Context, b Batch) error

	// Lifecycle
	Close() error
	Migrate() error
}
