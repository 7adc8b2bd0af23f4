// Package cache merges paginated feed results into the persisted
// notification cache.
package cache

import (
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// Direction says which side of the cache a fetched page extends.
type Direction int

const (
	// Prepend merges a page of newer items onto the front.
	Prepend Direction = iota
	// Append merges a page of older items onto the back.
	Append
)

// MaxItems caps the cache. Merges that would grow past the cap evict
// from the back (oldest first) and drop the stale forward cursor.
const MaxItems = 200

// Merge folds a fetched page into the existing cache and returns the
// result. It never fails: identities already present are dropped, and
// a page with no novel items leaves the cache untouched apart from
// returning it as-is (cursor staleness is tolerated). With no prior
// cache the page's PageInfo is adopted wholesale; otherwise only the
// cursor on the fetched side moves.
func Merge(existing *types.NotificationCache, page types.FetchedPage, dir Direction) types.NotificationCache {
	if existing == nil {
		fresh := types.NotificationCache{
			Items:    dedupe(page.Items),
			PageInfo: page.PageInfo,
		}
		return trim(fresh)
	}

	seen := make(map[string]struct{}, len(existing.Items))
	for _, item := range existing.Items {
		seen[item.ID] = struct{}{}
	}

	var novel []types.NotificationItem
	for _, item := range page.Items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		novel = append(novel, item)
	}

	if len(novel) == 0 {
		return *existing
	}

	updated := types.NotificationCache{PageInfo: existing.PageInfo}
	switch dir {
	case Prepend:
		updated.Items = append(novel, existing.Items...)
		updated.PageInfo.Prev = page.PageInfo.Prev
	case Append:
		updated.Items = append(append([]types.NotificationItem{}, existing.Items...), novel...)
		updated.PageInfo.Next = page.PageInfo.Next
	}
	return trim(updated)
}

func dedupe(items []types.NotificationItem) []types.NotificationItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// trim enforces MaxItems, evicting the oldest entries. Once eviction
// fires the next cursor no longer lines up with the cached tail, so it
// is cleared.
func trim(c types.NotificationCache) types.NotificationCache {
	if len(c.Items) <= MaxItems {
		return c
	}
	c.Items = c.Items[:MaxItems]
	c.PageInfo.Next = ""
	return c
}
