package pending

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FocalizeApp/focalize-daemon/internal/scheduler"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

type fakeSource struct {
	mu       sync.Mutex
	statuses map[string]types.ActionStatus
	err      error
}

func (f *fakeSource) ActionStatus(ctx context.Context, id string) (types.ActionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.ActionStatus{}, f.err
	}
	return f.statuses[id], nil
}

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) emit(e types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Event{}, r.events...)
}

func setup(t *testing.T, source *fakeSource) (*Tracker, *scheduler.Scheduler, *recorder) {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sched := scheduler.New(func(string) {})
	t.Cleanup(sched.Stop)

	rec := &recorder{}
	tr := New(s, sched, source, rec.emit, log.New(io.Discard, "", 0))
	tr.SetRetryInterval(time.Hour) // keep alarms from firing mid-test
	return tr, sched, rec
}

func action(id string) types.PendingAction {
	return types.PendingAction{ID: id, Kind: types.ActionFollow, Handle: "alice.lens", SubmittedAt: 1000}
}

func TestSubmitRecordsAndArms(t *testing.T) {
	tr, sched, _ := setup(t, &fakeSource{statuses: map[string]types.ActionStatus{}})
	ctx := context.Background()

	if err := tr.Submit(ctx, action("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, ok, _ := tr.Lookup(ctx, "a1"); !ok {
		t.Fatal("action not recorded")
	}
	if !sched.Active("a1") {
		t.Fatal("no alarm armed for action")
	}
}

func TestCompleteRemovesActionAndAlarm(t *testing.T) {
	src := &fakeSource{statuses: map[string]types.ActionStatus{
		"a1": {State: types.ActionComplete, TxHash: "0xdead"},
	}}
	tr, sched, rec := setup(t, src)
	ctx := context.Background()

	if err := tr.Submit(ctx, action("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	status, err := tr.Check(ctx, "a1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.State != types.ActionComplete {
		t.Fatalf("unexpected state: %s", status.State)
	}

	if _, ok, _ := tr.Lookup(ctx, "a1"); ok {
		t.Fatal("completed action still in pending map")
	}
	if sched.Active("a1") {
		t.Fatal("completed action still has an alarm")
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected one outcome event, got %d", len(events))
	}
	outcome, ok := events[0].(types.ActionOutcomeEvent)
	if !ok || outcome.Status.State != types.ActionComplete {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestErrorNotifiesButKeepsEntry(t *testing.T) {
	src := &fakeSource{statuses: map[string]types.ActionStatus{
		"a1": {State: types.ActionError, Reason: "reverted"},
	}}
	tr, sched, rec := setup(t, src)
	ctx := context.Background()

	if err := tr.Submit(ctx, action("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := tr.Check(ctx, "a1"); err != nil {
		t.Fatalf("check: %v", err)
	}

	// Entry survives so the UI can offer a manual retry; polling stops.
	if _, ok, _ := tr.Lookup(ctx, "a1"); !ok {
		t.Fatal("errored action should stay recorded")
	}
	if sched.Active("a1") {
		t.Fatal("errored action should not be re-armed")
	}
	if len(rec.all()) != 1 {
		t.Fatalf("expected one failure event, got %d", len(rec.all()))
	}
}

func TestNonTerminalReArms(t *testing.T) {
	src := &fakeSource{statuses: map[string]types.ActionStatus{
		"a1": {State: types.ActionMinting},
	}}
	tr, sched, rec := setup(t, src)
	ctx := context.Background()

	if err := tr.Submit(ctx, action("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := tr.Check(ctx, "a1"); err != nil {
		t.Fatalf("check: %v", err)
	}

	if _, ok, _ := tr.Lookup(ctx, "a1"); !ok {
		t.Fatal("non-terminal action dropped")
	}
	if !sched.Active("a1") {
		t.Fatal("non-terminal action not re-armed")
	}
	if len(rec.all()) != 0 {
		t.Fatal("non-terminal state should not notify")
	}
}

func TestTransientStatusErrorReArms(t *testing.T) {
	src := &fakeSource{err: errors.New("network down")}
	tr, sched, rec := setup(t, src)
	ctx := context.Background()

	if err := tr.Submit(ctx, action("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := tr.Check(ctx, "a1"); err != nil {
		t.Fatalf("check should swallow transient errors, got %v", err)
	}

	if !sched.Active("a1") {
		t.Fatal("transient failure should keep polling")
	}
	if len(rec.all()) != 0 {
		t.Fatal("transient failure should not notify")
	}
}

func TestUnknownAlarmNameIgnored(t *testing.T) {
	tr, _, rec := setup(t, &fakeSource{statuses: map[string]types.ActionStatus{}})

	tr.HandleAlarm(context.Background(), "never-recorded")

	if len(rec.all()) != 0 {
		t.Fatal("unknown alarm should be a no-op")
	}
}

func TestResumeReArmsRecordedActions(t *testing.T) {
	tr, sched, _ := setup(t, &fakeSource{statuses: map[string]types.ActionStatus{}})
	ctx := context.Background()

	if err := tr.Submit(ctx, action("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sched.Clear("a1") // simulate restart losing in-memory alarms

	if err := tr.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !sched.Active("a1") {
		t.Fatal("resume should re-arm recorded actions")
	}
}
