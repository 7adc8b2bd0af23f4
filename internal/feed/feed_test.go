package feed

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/FocalizeApp/focalize-daemon/internal/cache"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

type fakeSource struct {
	pages   []types.FetchedPage
	err     error
	cursors []string
}

func (f *fakeSource) FetchPage(ctx context.Context, cursor string, filtered bool) (types.FetchedPage, error) {
	f.cursors = append(f.cursors, cursor)
	if f.err != nil {
		return types.FetchedPage{}, f.err
	}
	if len(f.pages) == 0 {
		return types.FetchedPage{}, nil
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return page, nil
}

type harness struct {
	poller   *Poller
	store    store.Store
	source   *fakeSource
	events   []types.Event
	badges   []string
	loginHit int
}

func newHarness(t *testing.T, source *fakeSource) *harness {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	h := &harness{store: s, source: source}
	h.poller = New(s, source,
		func(_ context.Context, e types.Event) { h.events = append(h.events, e) },
		func(text string) { h.badges = append(h.badges, text) },
		func() { h.loginHit++ },
		log.New(io.Discard, "", 0), true)
	return h
}

func feedItem(id string, ts int64) types.NotificationItem {
	return types.NotificationItem{ID: id, Kind: types.NotificationMention, CreatedAt: ts}
}

func TestPollMergesAndDispatchesNovelty(t *testing.T) {
	src := &fakeSource{pages: []types.FetchedPage{{
		Items:    []types.NotificationItem{feedItem("a", 300), feedItem("b", 200)},
		PageInfo: types.PageInfo{Next: "n1", Prev: "p1"},
	}}}
	h := newHarness(t, src)
	ctx := context.Background()

	h.poller.Poll(ctx)

	c, err := cache.Load(ctx, h.store)
	if err != nil || c == nil {
		t.Fatalf("cache not persisted: %v", err)
	}
	if len(c.Items) != 2 || c.PageInfo.Prev != "p1" || c.PageInfo.Next != "n1" {
		t.Fatalf("unexpected cache: %+v", c)
	}
	if len(h.events) != 1 {
		t.Fatalf("expected one novelty event, got %d", len(h.events))
	}
	ev := h.events[0].(types.NewNotificationsEvent)
	if len(ev.Items) != 2 {
		t.Fatalf("expected 2 novel items, got %d", len(ev.Items))
	}
}

func TestPollUsesPrevCursorAndSkipsKnownItems(t *testing.T) {
	src := &fakeSource{pages: []types.FetchedPage{
		{
			Items:    []types.NotificationItem{feedItem("a", 300)},
			PageInfo: types.PageInfo{Prev: "p1"},
		},
		{
			Items:    []types.NotificationItem{feedItem("b", 400), feedItem("a", 300)},
			PageInfo: types.PageInfo{Prev: "p2"},
		},
	}}
	h := newHarness(t, src)
	ctx := context.Background()

	h.poller.Poll(ctx)
	h.poller.Poll(ctx)

	if src.cursors[0] != "" || src.cursors[1] != "p1" {
		t.Fatalf("unexpected cursors: %v", src.cursors)
	}

	if len(h.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(h.events))
	}
	second := h.events[1].(types.NewNotificationsEvent)
	if len(second.Items) != 1 || second.Items[0].ID != "b" {
		t.Fatalf("expected only the novel item, got %+v", second.Items)
	}
}

func TestTransientErrorIsSilent(t *testing.T) {
	src := &fakeSource{err: errors.New("503")}
	h := newHarness(t, src)

	h.poller.Poll(context.Background())

	if len(h.events) != 0 || h.loginHit != 0 {
		t.Fatalf("transient error should be silent: events=%d login=%d", len(h.events), h.loginHit)
	}
}

func TestUnauthenticatedOpensLogin(t *testing.T) {
	src := &fakeSource{err: ErrUnauthenticated}
	h := newHarness(t, src)

	h.poller.Poll(context.Background())

	if h.loginHit != 1 {
		t.Fatalf("expected login surface, got %d", h.loginHit)
	}
	if len(h.events) != 0 {
		t.Fatal("unauthenticated poll must not dispatch")
	}
}

func TestBadgeLifecycle(t *testing.T) {
	src := &fakeSource{pages: []types.FetchedPage{{
		Items:    []types.NotificationItem{feedItem("a", 300), feedItem("b", 200)},
		PageInfo: types.PageInfo{Prev: "p1"},
	}}}
	h := newHarness(t, src)
	ctx := context.Background()

	// Last-opened unknown: badge hidden.
	h.poller.Poll(ctx)
	if h.badges[len(h.badges)-1] != "" {
		t.Fatalf("badge should be hidden before first open, got %q", h.badges)
	}

	// Opening at ts=250 leaves one newer item.
	if err := h.poller.MarkOpened(ctx, 250); err != nil {
		t.Fatalf("mark opened: %v", err)
	}
	if h.badges[len(h.badges)-1] != "1" {
		t.Fatalf("expected badge 1, got %q", h.badges[len(h.badges)-1])
	}

	// Opening after everything clears it.
	if err := h.poller.MarkOpened(ctx, 300); err != nil {
		t.Fatalf("mark opened: %v", err)
	}
	if h.badges[len(h.badges)-1] != "" {
		t.Fatalf("expected empty badge, got %q", h.badges[len(h.badges)-1])
	}
}

func TestFetchOlderAppends(t *testing.T) {
	src := &fakeSource{pages: []types.FetchedPage{
		{
			Items:    []types.NotificationItem{feedItem("a", 300)},
			PageInfo: types.PageInfo{Next: "older", Prev: "p1"},
		},
		{
			Items:    []types.NotificationItem{feedItem("z", 100)},
			PageInfo: types.PageInfo{Next: "older-2", Prev: "stale"},
		},
	}}
	h := newHarness(t, src)
	ctx := context.Background()

	h.poller.Poll(ctx)
	got, err := h.poller.FetchOlder(ctx)
	if err != nil {
		t.Fatalf("fetch older: %v", err)
	}

	if len(got.Items) != 2 || got.Items[1].ID != "z" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.PageInfo.Next != "older-2" || got.PageInfo.Prev != "p1" {
		t.Fatalf("unexpected cursors: %+v", got.PageInfo)
	}
	if src.cursors[1] != "older" {
		t.Fatalf("expected next cursor used, got %v", src.cursors)
	}
}

func TestFetchOlderWithoutCursorIsNoOp(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, src)

	got, err := h.poller.FetchOlder(context.Background())
	if err != nil || got != nil {
		t.Fatalf("expected nil cache and no fetch, got %+v err=%v", got, err)
	}
	if len(src.cursors) != 0 {
		t.Fatal("no fetch should happen without a cache")
	}
}
