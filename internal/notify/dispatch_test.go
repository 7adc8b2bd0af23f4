package notify

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"

	"github.com/FocalizeApp/focalize-daemon/internal/link"
	"github.com/FocalizeApp/focalize-daemon/internal/readstate"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

type fakeSurface struct {
	mu      sync.Mutex
	raised  []Notification
	cleared []string
}

func (f *fakeSurface) Notify(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, n)
	return nil
}

func (f *fakeSurface) Clear(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	return nil
}

func newTestDispatcher(t *testing.T, grouped bool) (*Dispatcher, *fakeSurface, *readstate.Tracker, *[]string) {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	surface := &fakeSurface{}
	reads := readstate.New(s, "0xme")
	var opened []string
	opener := func(url string) error {
		opened = append(opened, url)
		return nil
	}
	d := New(surface, link.New("https://hey.xyz"), reads, opener, log.New(io.Discard, "", 0), grouped, 50)
	return d, surface, reads, &opened
}

func notifItem(id string, kind types.NotificationKind) types.NotificationItem {
	return types.NotificationItem{
		ID:        id,
		Kind:      kind,
		CreatedAt: 1000,
		Actors:    []types.ProfileRef{{ID: "p1", Handle: "alice", DisplayName: "Alice"}},
		Content:   &types.ContentRef{ID: "pub-1"},
	}
}

func TestGroupedDispatchRaisesSingleAggregate(t *testing.T) {
	d, surface, _, _ := newTestDispatcher(t, true)

	items := []types.NotificationItem{
		notifItem("n1", types.NotificationComment),
		notifItem("n2", types.NotificationReaction),
		notifItem("n3", types.NotificationFollow),
	}
	d.Dispatch(context.Background(), types.NewNotificationsEvent{Items: items})

	if len(surface.raised) != 1 {
		t.Fatalf("expected one aggregate notification, got %d", len(surface.raised))
	}
	n := surface.raised[0]
	if n.ID != GroupID {
		t.Fatalf("aggregate should use the fixed group id, got %s", n.ID)
	}
	if n.Body != "3 new notifications" {
		t.Fatalf("unexpected body: %q", n.Body)
	}
}

func TestIndividualDispatchKeysByItemID(t *testing.T) {
	d, surface, _, _ := newTestDispatcher(t, false)

	d.Dispatch(context.Background(), types.NewNotificationsEvent{Items: []types.NotificationItem{
		notifItem("n1", types.NotificationComment),
		notifItem("n2", types.NotificationReaction),
	}})

	if len(surface.raised) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(surface.raised))
	}
	if surface.raised[0].ID != "n1" || surface.raised[1].ID != "n2" {
		t.Fatalf("notifications not keyed by item id: %+v", surface.raised)
	}
	if !surface.raised[0].RequireInteraction {
		t.Fatal("comment should require interaction")
	}
	if surface.raised[1].RequireInteraction {
		t.Fatal("reaction should auto-dismiss")
	}
	if surface.raised[0].Title != "Alice" {
		t.Fatalf("unexpected title: %s", surface.raised[0].Title)
	}
}

func TestGroupLabelCap(t *testing.T) {
	cases := []struct {
		count, pageSize int
		want            string
	}{
		{3, 50, "3"},
		{49, 50, "49"},
		{50, 50, "49+"},
		{75, 50, "49+"},
	}
	for _, c := range cases {
		if got := GroupLabel(c.count, c.pageSize); got != c.want {
			t.Errorf("GroupLabel(%d, %d) = %q, want %q", c.count, c.pageSize, got, c.want)
		}
	}
}

func TestActionTextCoversEveryKind(t *testing.T) {
	for _, kind := range types.Kinds {
		if ActionText(kind) == "interacted with you" {
			t.Errorf("kind %s fell through to the default action text", kind)
		}
	}
}

func TestClickOpensResolvedURL(t *testing.T) {
	d, surface, _, opened := newTestDispatcher(t, false)
	ctx := context.Background()

	d.Dispatch(ctx, types.NewNotificationsEvent{Items: []types.NotificationItem{
		notifItem("n1", types.NotificationComment),
	}})
	d.HandleClick(ctx, "n1")

	if len(*opened) != 1 || (*opened)[0] != "https://hey.xyz/posts/pub-1" {
		t.Fatalf("unexpected opened urls: %v", *opened)
	}
	if len(surface.cleared) != 1 || surface.cleared[0] != "n1" {
		t.Fatalf("clicked notification not cleared: %v", surface.cleared)
	}

	// Clicking an unknown id is a no-op.
	d.HandleClick(ctx, "ghost")
	if len(*opened) != 1 {
		t.Fatal("unknown id should not open anything")
	}
}

func TestUserCloseMarksMessageRead(t *testing.T) {
	d, _, reads, _ := newTestDispatcher(t, false)
	ctx := context.Background()

	msg := types.CompactMessage{Topic: "t1", Timestamp: 1234, Content: "hi", Sender: "0xpeer"}
	d.Dispatch(ctx, types.NewMessageEvent{
		Message: msg,
		Thread:  types.Thread{Topic: "t1", Peer: types.Peer{Address: "0xpeer"}},
	})

	d.HandleClose(ctx, "t1", true)

	readMap, _, err := reads.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if readMap["t1"] != 1234 {
		t.Fatalf("close should mark thread read at message time, got %d", readMap["t1"])
	}
}

func TestProgrammaticCloseDoesNotMarkRead(t *testing.T) {
	d, _, reads, _ := newTestDispatcher(t, false)
	ctx := context.Background()

	msg := types.CompactMessage{Topic: "t1", Timestamp: 1234, Content: "hi", Sender: "0xpeer"}
	d.Dispatch(ctx, types.NewMessageEvent{
		Message: msg,
		Thread:  types.Thread{Topic: "t1", Peer: types.Peer{Address: "0xpeer"}},
	})

	d.HandleClose(ctx, "t1", false)

	readMap, _, _ := reads.Snapshot(ctx)
	if readMap["t1"] != 0 {
		t.Fatalf("programmatic close must not touch read state, got %d", readMap["t1"])
	}
}

func TestActionOutcomeNotifications(t *testing.T) {
	d, surface, _, _ := newTestDispatcher(t, false)
	ctx := context.Background()
	action := types.PendingAction{ID: "a1", Kind: types.ActionFollow, Handle: "alice.lens"}

	d.Dispatch(ctx, types.ActionOutcomeEvent{
		Action: action,
		Status: types.ActionStatus{State: types.ActionComplete},
	})
	d.Dispatch(ctx, types.ActionOutcomeEvent{
		Action: action,
		Status: types.ActionStatus{State: types.ActionError, Reason: "reverted"},
	})

	if len(surface.raised) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(surface.raised))
	}
	if surface.raised[0].RequireInteraction {
		t.Fatal("success outcome should auto-dismiss")
	}
	if !surface.raised[1].RequireInteraction {
		t.Fatal("failure outcome must require interaction")
	}
	if surface.raised[1].Body != "Could not follow @alice.lens: reverted" {
		t.Fatalf("unexpected failure body: %q", surface.raised[1].Body)
	}
}
