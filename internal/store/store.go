package store

import (
	"context"
	"errors"
)

// Scope selects one of the two storage areas: Local stays on this
// machine, Sync is replicated across the user's devices when a remote
// backend is configured.
type Scope string

const (
	ScopeLocal Scope = "local"
	ScopeSync  Scope = "sync"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store: closed")

// Store is a namespaced key-value store. There are no transactions and
// no compare-and-swap: concurrent read-modify-write cycles resolve as
// last-writer-wins per key.
type Store interface {
	// Get returns the value for key, reporting whether it exists.
	Get(ctx context.Context, scope Scope, key string) ([]byte, bool, error)
	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, scope Scope, key string, value []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, scope Scope, key string) error
	// Close releases the backing resources.
	Close() error
}
