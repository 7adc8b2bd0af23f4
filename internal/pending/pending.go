// Package pending tracks server-mediated async actions (gas-less
// follows, collects) from submission until they settle on-chain.
package pending

import (
	"context"
	"log"
	"time"

	"github.com/FocalizeApp/focalize-daemon/internal/scheduler"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

const (
	pendingKey = "actions.pending"

	// DefaultRetryInterval is the constant re-poll delay for a
	// non-terminal action. No backoff: the status poll is cheap and
	// actions settle within a bounded number of blocks.
	DefaultRetryInterval = time.Minute
)

// StatusSource queries the upstream service for an action's state.
type StatusSource interface {
	ActionStatus(ctx context.Context, id string) (types.ActionStatus, error)
}

// Tracker drives pending actions through their state machine:
// queued/minting/transferring re-arm a one-shot alarm, complete
// removes the action, error notifies and stops polling.
type Tracker struct {
	store  store.Store
	sched  *scheduler.Scheduler
	source StatusSource
	emit   func(types.Event)
	logger *log.Logger
	retry  time.Duration
}

// New creates a tracker. emit receives outcome events for the
// notification dispatcher.
func New(s store.Store, sched *scheduler.Scheduler, source StatusSource, emit func(types.Event), logger *log.Logger) *Tracker {
	return &Tracker{
		store:  s,
		sched:  sched,
		source: source,
		emit:   emit,
		logger: logger,
		retry:  DefaultRetryInterval,
	}
}

// SetRetryInterval overrides the re-poll delay. Intended for tests.
func (t *Tracker) SetRetryInterval(d time.Duration) {
	t.retry = d
}

// Submit records a freshly submitted action and starts polling it.
func (t *Tracker) Submit(ctx context.Context, action types.PendingAction) error {
	if action.ID == "" {
		// Caller defect, not a transient condition.
		panic("pending: action id is required")
	}
	if err := t.upsert(ctx, action); err != nil {
		return err
	}
	t.sched.SetOnce(action.ID, t.retry)
	return nil
}

// Check polls the action's upstream status and applies the resulting
// transition. Concurrent checks of the same id converge: the status
// query is read-only upstream and the map write is last-writer-wins.
func (t *Tracker) Check(ctx context.Context, id string) (types.ActionStatus, error) {
	action, ok, err := t.Lookup(ctx, id)
	if err != nil {
		return types.ActionStatus{}, err
	}
	if !ok {
		// Context already cleaned up, or never recorded.
		return types.ActionStatus{}, nil
	}

	status, err := t.source.ActionStatus(ctx, id)
	if err != nil {
		// Transient: keep the action and try again next cycle.
		t.logger.Printf("pending: status check for %s failed: %v", id, err)
		t.sched.SetOnce(id, t.retry)
		return types.ActionStatus{}, nil
	}

	switch status.State {
	case types.ActionComplete:
		if err := t.delete(ctx, id); err != nil {
			return status, err
		}
		t.sched.Clear(id)
		t.emit(types.ActionOutcomeEvent{Action: action, Status: status})
	case types.ActionError:
		// Entry is kept so the UI retains a retry surface; polling
		// stops until the user resubmits.
		t.sched.Clear(id)
		t.emit(types.ActionOutcomeEvent{Action: action, Status: status})
	case types.ActionQueued, types.ActionMinting, types.ActionTransferring:
		if err := t.upsert(ctx, action); err != nil {
			return status, err
		}
		t.sched.SetOnce(id, t.retry)
	}
	return status, nil
}

// HandleAlarm resolves a dynamically-named alarm to its action and
// checks it. Unknown names are silently ignored.
func (t *Tracker) HandleAlarm(ctx context.Context, name string) {
	if _, err := t.Check(ctx, name); err != nil {
		t.logger.Printf("pending: alarm %s: %v", name, err)
	}
}

// Lookup returns the recorded context for an action id.
func (t *Tracker) Lookup(ctx context.Context, id string) (types.PendingAction, bool, error) {
	actions, err := t.loadAll(ctx)
	if err != nil {
		return types.PendingAction{}, false, err
	}
	action, ok := actions[id]
	return action, ok, nil
}

// All returns every recorded pending action.
func (t *Tracker) All(ctx context.Context) (map[string]types.PendingAction, error) {
	return t.loadAll(ctx)
}

// Resume re-arms a poll alarm for every recorded action. Called on
// daemon startup so actions survive process restarts.
func (t *Tracker) Resume(ctx context.Context) error {
	actions, err := t.loadAll(ctx)
	if err != nil {
		return err
	}
	for id := range actions {
		t.sched.SetOnce(id, t.retry)
	}
	return nil
}

func (t *Tracker) loadAll(ctx context.Context) (map[string]types.PendingAction, error) {
	actions := map[string]types.PendingAction{}
	if _, err := store.GetJSON(ctx, t.store, store.ScopeLocal, pendingKey, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

func (t *Tracker) upsert(ctx context.Context, action types.PendingAction) error {
	actions, err := t.loadAll(ctx)
	if err != nil {
		return err
	}
	actions[action.ID] = action
	return store.SetJSON(ctx, t.store, store.ScopeLocal, pendingKey, actions)
}

func (t *Tracker) delete(ctx context.Context, id string) error {
	actions, err := t.loadAll(ctx)
	if err != nil {
		return err
	}
	delete(actions, id)
	return store.SetJSON(ctx, t.store, store.ScopeLocal, pendingKey, actions)
}
