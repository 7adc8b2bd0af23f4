package store

import (
	"context"
	"fmt"
)

// routedStore sends sync-scope operations to a replicated backend and
// everything else to the local one.
type routedStore struct {
	local Store
	sync  Store
}

// Open builds the store from configuration: a SQLite file for the
// local scope, and optionally a Postgres backend for the sync scope
// when syncDSN is non-empty. With no DSN both scopes share the SQLite
// file.
func Open(sqlitePath, syncDSN string) (Store, error) {
	local, err := OpenSQLite(sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if syncDSN == "" {
		return local, nil
	}

	remote, err := OpenPostgres(syncDSN)
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("open sync store: %w", err)
	}
	return &routedStore{local: local, sync: remote}, nil
}

func (r *routedStore) pick(scope Scope) Store {
	if scope == ScopeSync {
		return r.sync
	}
	return r.local
}

func (r *routedStore) Get(ctx context.Context, scope Scope, key string) ([]byte, bool, error) {
	return r.pick(scope).Get(ctx, scope, key)
}

func (r *routedStore) Set(ctx context.Context, scope Scope, key string, value []byte) error {
	return r.pick(scope).Set(ctx, scope, key, value)
}

func (r *routedStore) Delete(ctx context.Context, scope Scope, key string) error {
	return r.pick(scope).Delete(ctx, scope, key)
}

func (r *routedStore) Close() error {
	lerr := r.local.Close()
	if err := r.sync.Close(); err != nil {
		return err
	}
	return lerr
}
