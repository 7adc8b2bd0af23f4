package cache

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

func item(id string, ts int64) types.NotificationItem {
	return types.NotificationItem{
		ID:        id,
		Kind:      types.NotificationComment,
		CreatedAt: ts,
		Actors:    []types.ProfileRef{{ID: "p1", Handle: "alice"}},
	}
}

func ids(items []types.NotificationItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFirstFetchAdoptsPageWholesale(t *testing.T) {
	page := types.FetchedPage{
		Items:    []types.NotificationItem{item("a", 300), item("b", 200), item("c", 100)},
		PageInfo: types.PageInfo{Next: "c1", Prev: "c2"},
	}

	got := Merge(nil, page, Prepend)

	if len(got.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got.Items))
	}
	if got.PageInfo != page.PageInfo {
		t.Fatalf("expected page info adopted wholesale, got %+v", got.PageInfo)
	}
}

func TestPrependKeepsOppositeCursor(t *testing.T) {
	existing := types.NotificationCache{
		Items:    []types.NotificationItem{item("a", 300), item("b", 200), item("c", 100)},
		PageInfo: types.PageInfo{Next: "old-next", Prev: "old-prev"},
	}
	page := types.FetchedPage{
		Items:    []types.NotificationItem{item("x", 500), item("y", 400), item("a", 300)},
		PageInfo: types.PageInfo{Next: "page-next", Prev: "page-prev"},
	}

	got := Merge(&existing, page, Prepend)

	want := []string{"x", "y", "a", "b", "c"}
	if !reflect.DeepEqual(ids(got.Items), want) {
		t.Fatalf("unexpected order: %v", ids(got.Items))
	}
	if got.PageInfo.Prev != "page-prev" {
		t.Fatalf("prev cursor not updated: %+v", got.PageInfo)
	}
	if got.PageInfo.Next != "old-next" {
		t.Fatalf("next cursor should be preserved: %+v", got.PageInfo)
	}
}

func TestAppendUpdatesNextOnly(t *testing.T) {
	existing := types.NotificationCache{
		Items:    []types.NotificationItem{item("a", 300)},
		PageInfo: types.PageInfo{Next: "old-next", Prev: "old-prev"},
	}
	page := types.FetchedPage{
		Items:    []types.NotificationItem{item("z", 50)},
		PageInfo: types.PageInfo{Next: "page-next", Prev: "page-prev"},
	}

	got := Merge(&existing, page, Append)

	if !reflect.DeepEqual(ids(got.Items), []string{"a", "z"}) {
		t.Fatalf("unexpected order: %v", ids(got.Items))
	}
	if got.PageInfo.Next != "page-next" || got.PageInfo.Prev != "old-prev" {
		t.Fatalf("unexpected cursors: %+v", got.PageInfo)
	}
}

func TestAllDuplicatePageIsNoOp(t *testing.T) {
	existing := types.NotificationCache{
		Items:    []types.NotificationItem{item("a", 300), item("b", 200)},
		PageInfo: types.PageInfo{Next: "n", Prev: "p"},
	}
	page := types.FetchedPage{
		Items:    []types.NotificationItem{item("b", 200), item("a", 300)},
		PageInfo: types.PageInfo{Next: "stale-n", Prev: "stale-p"},
	}

	for _, dir := range []Direction{Prepend, Append} {
		got := Merge(&existing, page, dir)
		if !reflect.DeepEqual(got, existing) {
			t.Fatalf("dir %v: expected no-op, got %+v", dir, got)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	page := types.FetchedPage{
		Items:    []types.NotificationItem{item("a", 300), item("b", 200)},
		PageInfo: types.PageInfo{Next: "n", Prev: "p"},
	}

	first := Merge(nil, page, Prepend)
	second := Merge(&first, page, Prepend)
	third := Merge(&second, page, Append)

	if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(second, third) {
		t.Fatalf("repeated merges diverged: %v vs %v vs %v",
			ids(first.Items), ids(second.Items), ids(third.Items))
	}
}

func TestNoDuplicatesAcrossMergeSequences(t *testing.T) {
	var c *types.NotificationCache
	pages := []types.FetchedPage{
		{Items: []types.NotificationItem{item("a", 5), item("b", 4)}, PageInfo: types.PageInfo{Next: "1"}},
		{Items: []types.NotificationItem{item("b", 4), item("c", 3)}, PageInfo: types.PageInfo{Next: "2"}},
		{Items: []types.NotificationItem{item("d", 6), item("a", 5)}, PageInfo: types.PageInfo{Prev: "3"}},
	}
	dirs := []Direction{Prepend, Append, Prepend}

	for i, page := range pages {
		merged := Merge(c, page, dirs[i])
		c = &merged
	}

	seen := map[string]bool{}
	for _, it := range c.Items {
		if seen[it.ID] {
			t.Fatalf("duplicate identity %s in %v", it.ID, ids(c.Items))
		}
		seen[it.ID] = true
	}
	if len(c.Items) != 4 {
		t.Fatalf("expected 4 distinct items, got %v", ids(c.Items))
	}
}

func TestTrimEvictsOldestAndClearsNext(t *testing.T) {
	existing := types.NotificationCache{PageInfo: types.PageInfo{Next: "n"}}
	for i := 0; i < MaxItems; i++ {
		existing.Items = append(existing.Items, item(fmt.Sprintf("i%d", i), int64(MaxItems-i)))
	}

	page := types.FetchedPage{
		Items:    []types.NotificationItem{item("fresh", 9999)},
		PageInfo: types.PageInfo{Prev: "newer"},
	}
	got := Merge(&existing, page, Prepend)

	if len(got.Items) != MaxItems {
		t.Fatalf("expected cap at %d, got %d", MaxItems, len(got.Items))
	}
	if got.Items[0].ID != "fresh" {
		t.Fatalf("expected new item at front, got %s", got.Items[0].ID)
	}
	if got.PageInfo.Next != "" {
		t.Fatal("expected next cursor cleared after eviction")
	}
}
