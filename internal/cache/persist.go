package cache

import (
	"context"

	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

const (
	cacheKey      = "notifications.cache"
	lastOpenedKey = "notifications.last_opened"
)

// Load reads the persisted cache, returning nil when none exists yet.
func Load(ctx context.Context, s store.Store) (*types.NotificationCache, error) {
	var c types.NotificationCache
	ok, err := store.GetJSON(ctx, s, store.ScopeLocal, cacheKey, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// Save persists the cache.
func Save(ctx context.Context, s store.Store, c types.NotificationCache) error {
	return store.SetJSON(ctx, s, store.ScopeLocal, cacheKey, c)
}

// LastOpened returns the unix-milli time the user last opened the
// notifications surface, or 0 when unknown. Stored in the sync scope
// so reading notifications on one device clears them everywhere.
func LastOpened(ctx context.Context, s store.Store) (int64, error) {
	var ts int64
	ok, err := store.GetJSON(ctx, s, store.ScopeSync, lastOpenedKey, &ts)
	if err != nil || !ok {
		return 0, err
	}
	return ts, nil
}

// SetLastOpened records when the user opened the notifications surface.
func SetLastOpened(ctx context.Context, s store.Store, ts int64) error {
	return store.SetJSON(ctx, s, store.ScopeSync, lastOpenedKey, ts)
}
