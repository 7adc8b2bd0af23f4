// Package feed polls the social-graph notification feed and folds
// results into the persisted cache.
package feed

import (
	"context"
	"errors"
	"log"

	"github.com/FocalizeApp/focalize-daemon/internal/cache"
	"github.com/FocalizeApp/focalize-daemon/internal/notify"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// ErrUnauthenticated is returned by a Source when the feed requires a
// login. The poller does not retry it; the daemon surfaces the login
// page instead.
var ErrUnauthenticated = errors.New("feed: not authenticated")

// Source fetches one page of the notification feed. An empty cursor
// requests the newest page. filtered asks the server to exclude
// low-signal notifications.
type Source interface {
	FetchPage(ctx context.Context, cursor string, filtered bool) (types.FetchedPage, error)
}

// Poller runs one poll cycle per alarm fire: fetch newer items, merge,
// dispatch novelty, refresh the badge.
type Poller struct {
	store             store.Store
	source            Source
	dispatch          func(ctx context.Context, e types.Event)
	onBadge           func(text string)
	onUnauthenticated func()
	logger            *log.Logger
	filtered          bool
}

// New creates a poller. onBadge receives the derived badge text after
// each cycle; onUnauthenticated fires when the feed needs a login.
func New(s store.Store, source Source, dispatch func(context.Context, types.Event), onBadge func(string), onUnauthenticated func(), logger *log.Logger, filtered bool) *Poller {
	return &Poller{
		store:             s,
		source:            source,
		dispatch:          dispatch,
		onBadge:           onBadge,
		onUnauthenticated: onUnauthenticated,
		logger:            logger,
		filtered:          filtered,
	}
}

// Poll fetches the newest page and reconciles it. Transient fetch
// errors are logged and treated as "no new data"; the next scheduled
// cycle retries naturally.
func (p *Poller) Poll(ctx context.Context) {
	existing, err := cache.Load(ctx, p.store)
	if err != nil {
		p.logger.Printf("feed: load cache: %v", err)
		return
	}

	cursor := ""
	if existing != nil {
		cursor = existing.PageInfo.Prev
	}

	page, err := p.source.FetchPage(ctx, cursor, p.filtered)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			p.onUnauthenticated()
			return
		}
		p.logger.Printf("feed: fetch: %v", err)
		return
	}

	novel := novelItems(existing, page)
	merged := cache.Merge(existing, page, cache.Prepend)
	if err := cache.Save(ctx, p.store, merged); err != nil {
		p.logger.Printf("feed: save cache: %v", err)
		return
	}

	if len(novel) > 0 {
		p.dispatch(ctx, types.NewNotificationsEvent{Items: novel})
	}
	p.refreshBadge(ctx, &merged)
}

// FetchOlder pages backwards through history on behalf of the UI and
// returns the updated cache.
func (p *Poller) FetchOlder(ctx context.Context) (*types.NotificationCache, error) {
	existing, err := cache.Load(ctx, p.store)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.PageInfo.Next == "" {
		return existing, nil
	}

	page, err := p.source.FetchPage(ctx, existing.PageInfo.Next, p.filtered)
	if err != nil {
		return nil, err
	}
	merged := cache.Merge(existing, page, cache.Append)
	if err := cache.Save(ctx, p.store, merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// MarkOpened records that the user opened the notifications surface
// and refreshes the badge (which goes blank until newer items arrive).
func (p *Poller) MarkOpened(ctx context.Context, ts int64) error {
	if err := cache.SetLastOpened(ctx, p.store, ts); err != nil {
		return err
	}
	c, err := cache.Load(ctx, p.store)
	if err != nil {
		return err
	}
	p.refreshBadge(ctx, c)
	return nil
}

func (p *Poller) refreshBadge(ctx context.Context, c *types.NotificationCache) {
	lastOpened, err := cache.LastOpened(ctx, p.store)
	if err != nil {
		p.logger.Printf("feed: load last opened: %v", err)
		return
	}
	p.onBadge(notify.Badge(c, lastOpened))
}

func novelItems(existing *types.NotificationCache, page types.FetchedPage) []types.NotificationItem {
	seen := map[string]struct{}{}
	if existing != nil {
		for _, item := range existing.Items {
			seen[item.ID] = struct{}{}
		}
	}
	var novel []types.NotificationItem
	for _, item := range page.Items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		novel = append(novel, item)
	}
	return novel
}
