// Package readstate tracks per-topic read timestamps for the
// messaging network.
package readstate

import (
	"context"
	"strings"

	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

const stateKey = "messages.read_state"

// state is the persisted shape. Initialized flips to true after the
// first batch sync so later unknown topics default to unread instead
// of being seeded silently.
type state struct {
	Initialized bool                   `json:"initialized"`
	Timestamps  types.ReadTimestampMap `json:"timestamps"`
}

// Tracker persists read timestamps in the sync scope so read state
// follows the user across devices.
type Tracker struct {
	store store.Store
	own   string
}

// New returns a tracker. ownAddress is the user's wallet address;
// messages they sent are always read.
func New(s store.Store, ownAddress string) *Tracker {
	return &Tracker{store: s, own: strings.ToLower(ownAddress)}
}

// IsUnread reports whether msg is newer than the stored read timestamp
// for its topic. A missing entry defaults to zero (never read). A
// message sent by ownAddress is always read.
func IsUnread(msg types.CompactMessage, readMap types.ReadTimestampMap, ownAddress string) bool {
	if strings.EqualFold(msg.Sender, ownAddress) {
		return false
	}
	return msg.Timestamp > readMap[msg.Topic]
}

// Snapshot returns the current read-timestamp map and whether the
// tracker has completed its first batch sync.
func (t *Tracker) Snapshot(ctx context.Context) (types.ReadTimestampMap, bool, error) {
	st, err := t.load(ctx)
	if err != nil {
		return nil, false, err
	}
	return st.Timestamps, st.Initialized, nil
}

// FilterUnread classifies one batch cycle's messages and returns the
// unread subset, updating persisted state as needed. A completed batch
// marks the tracker initialized.
//
// Seeding rule: until the tracker is initialized, a topic with no
// entry is seeded with the message's own timestamp and the message is
// reported read. This prevents a notification storm when read state is
// first established over pre-existing conversations. After
// initialization a missing entry means unread.
func (t *Tracker) FilterUnread(ctx context.Context, msgs []types.CompactMessage) ([]types.CompactMessage, error) {
	return t.filter(ctx, msgs, true)
}

// FilterStreamed classifies live-streamed messages. The seeding rule
// is the same as FilterUnread's, but a streamed message never
// completes the initial sync: only a full batch cycle establishes
// read state for every pre-existing conversation.
func (t *Tracker) FilterStreamed(ctx context.Context, msgs []types.CompactMessage) ([]types.CompactMessage, error) {
	return t.filter(ctx, msgs, false)
}

func (t *Tracker) filter(ctx context.Context, msgs []types.CompactMessage, batch bool) ([]types.CompactMessage, error) {
	st, err := t.load(ctx)
	if err != nil {
		return nil, err
	}

	var unread []types.CompactMessage
	dirty := batch && !st.Initialized
	for _, msg := range msgs {
		if _, ok := st.Timestamps[msg.Topic]; !ok && !st.Initialized {
			st.Timestamps[msg.Topic] = msg.Timestamp
			dirty = true
			continue
		}
		if IsUnread(msg, st.Timestamps, t.own) {
			unread = append(unread, msg)
		}
	}
	if batch {
		st.Initialized = true
	}

	if dirty {
		if err := t.save(ctx, st); err != nil {
			return nil, err
		}
	}
	return unread, nil
}

// MarkRead advances the topic's read timestamp. Updates are monotonic:
// a timestamp older than the stored one is ignored.
func (t *Tracker) MarkRead(ctx context.Context, topic string, ts int64) error {
	st, err := t.load(ctx)
	if err != nil {
		return err
	}
	if ts <= st.Timestamps[topic] {
		return nil
	}
	st.Timestamps[topic] = ts
	return t.save(ctx, st)
}

// MarkAllRead sets every thread's read timestamp to its latest message
// and returns the threads with unread flags cleared. The store write
// is a single bulk read-modify-write with no isolation.
func (t *Tracker) MarkAllRead(ctx context.Context, threads []types.Thread) ([]types.Thread, error) {
	st, err := t.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.Thread, len(threads))
	for i, th := range threads {
		if th.Latest != nil && th.Latest.Timestamp > st.Timestamps[th.Topic] {
			st.Timestamps[th.Topic] = th.Latest.Timestamp
		}
		th.Unread = false
		out[i] = th
	}

	if err := t.save(ctx, st); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tracker) load(ctx context.Context) (state, error) {
	st := state{Timestamps: types.ReadTimestampMap{}}
	if _, err := store.GetJSON(ctx, t.store, store.ScopeSync, stateKey, &st); err != nil {
		return st, err
	}
	if st.Timestamps == nil {
		st.Timestamps = types.ReadTimestampMap{}
	}
	return st, nil
}

func (t *Tracker) save(ctx context.Context, st state) error {
	return store.SetJSON(ctx, t.store, store.ScopeSync, stateKey, st)
}
