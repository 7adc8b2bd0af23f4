package messaging

import (
	"context"
	"errors"
	"log"

	"github.com/FocalizeApp/focalize-daemon/internal/profile"
	"github.com/FocalizeApp/focalize-daemon/internal/readstate"
	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

const snapshotsKey = "messages.latest_snapshots"

// Handler owns the messages poll cycle and the live stream consumers.
// Threads are transient projections rebuilt on every invocation; only
// read timestamps and latest-message snapshots are persisted.
type Handler struct {
	store    store.Store
	handle   *Handle
	reads    *readstate.Tracker
	profiles *profile.Resolver
	dispatch func(ctx context.Context, e types.Event)
	logger   *log.Logger
}

// NewHandler wires the messages side of the daemon.
func NewHandler(s store.Store, handle *Handle, reads *readstate.Tracker, profiles *profile.Resolver, dispatch func(context.Context, types.Event), logger *log.Logger) *Handler {
	return &Handler{
		store:    s,
		handle:   handle,
		reads:    reads,
		profiles: profiles,
		dispatch: dispatch,
		logger:   logger,
	}
}

// Poll runs one batch cycle: list conversations, snapshot the latest
// message of each, classify unread, dispatch notifications. All
// upstream errors are logged and swallowed; the next alarm retries.
func (h *Handler) Poll(ctx context.Context) {
	threads, unread, err := h.assemble(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoKeyMaterial) {
			h.logger.Printf("messaging: poll: %v", err)
		}
		return
	}

	byTopic := make(map[string]types.Thread, len(threads))
	for _, th := range threads {
		byTopic[th.Topic] = th
	}
	for _, msg := range unread {
		th, ok := byTopic[msg.Topic]
		if !ok {
			th = types.Thread{Topic: msg.Topic, Peer: types.Peer{Address: msg.Sender}, Unread: true}
		}
		h.dispatch(ctx, types.NewMessageEvent{Message: msg, Thread: th})
	}
}

// Threads rebuilds the thread list with unread flags for the UI.
func (h *Handler) Threads(ctx context.Context) ([]types.Thread, error) {
	threads, _, err := h.assemble(ctx)
	return threads, err
}

// MarkAllRead advances every thread's read timestamp to its latest
// message and returns the cleared threads.
func (h *Handler) MarkAllRead(ctx context.Context) ([]types.Thread, error) {
	threads, _, err := h.assemble(ctx)
	if err != nil {
		return nil, err
	}
	return h.reads.MarkAllRead(ctx, threads)
}

// assemble lists conversations, refreshes latest-message snapshots,
// and classifies unread messages.
func (h *Handler) assemble(ctx context.Context) ([]types.Thread, []types.CompactMessage, error) {
	client, err := h.handle.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	conversations, err := client.ListConversations(ctx)
	if err != nil {
		return nil, nil, err
	}

	snapshots, err := h.loadSnapshots(ctx)
	if err != nil {
		return nil, nil, err
	}

	var latest []types.CompactMessage
	addresses := make([]string, 0, len(conversations))
	for _, conv := range conversations {
		addresses = append(addresses, conv.Peer)
		msgs, err := client.QueryMessages(ctx, conv, Descending, 1, 0)
		if err != nil {
			h.logger.Printf("messaging: query %s: %v", conv.Topic, err)
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		compact := Compact(msgs[0])
		snapshots[conv.Topic] = compact
		latest = append(latest, compact)
	}

	if err := store.SetJSON(ctx, h.store, store.ScopeLocal, snapshotsKey, snapshots); err != nil {
		return nil, nil, err
	}

	unread, err := h.reads.FilterUnread(ctx, latest)
	if err != nil {
		return nil, nil, err
	}
	unreadTopics := make(map[string]bool, len(unread))
	for _, msg := range unread {
		unreadTopics[msg.Topic] = true
	}

	peers := h.profiles.ResolvePeers(ctx, addresses)
	threads := make([]types.Thread, 0, len(conversations))
	for i, conv := range conversations {
		th := types.Thread{
			Topic:  conv.Topic,
			Peer:   peers[i],
			Unread: unreadTopics[conv.Topic],
		}
		if snap, ok := snapshots[conv.Topic]; ok {
			msg := snap
			th.Latest = &msg
		}
		threads = append(threads, th)
	}
	return threads, unread, nil
}

// RunStreams consumes the live message and conversation streams until
// ctx is cancelled. Both subscriptions are closed on every exit path.
func (h *Handler) RunStreams(ctx context.Context) error {
	client, err := h.handle.Get(ctx)
	if err != nil {
		return err
	}

	msgSub, err := client.StreamMessages(ctx)
	if err != nil {
		return err
	}
	defer msgSub.Close()

	convSub, err := client.StreamConversations(ctx)
	if err != nil {
		return err
	}
	defer convSub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-msgSub.Events():
			if !ok {
				return nil
			}
			if event.Message != nil {
				h.handleStreamedMessage(ctx, *event.Message)
			}
		case event, ok := <-convSub.Events():
			if !ok {
				return nil
			}
			if event.Conversation != nil {
				h.handleNewConversation(ctx, *event.Conversation)
			}
		}
	}
}

func (h *Handler) handleStreamedMessage(ctx context.Context, msg Message) {
	compact := Compact(msg)

	snapshots, err := h.loadSnapshots(ctx)
	if err != nil {
		h.logger.Printf("messaging: stream snapshot load: %v", err)
		return
	}
	snapshots[compact.Topic] = compact
	if err := store.SetJSON(ctx, h.store, store.ScopeLocal, snapshotsKey, snapshots); err != nil {
		h.logger.Printf("messaging: stream snapshot save: %v", err)
		return
	}

	unread, err := h.reads.FilterStreamed(ctx, []types.CompactMessage{compact})
	if err != nil {
		h.logger.Printf("messaging: stream classify: %v", err)
		return
	}
	if len(unread) == 0 {
		return
	}

	peers := h.profiles.ResolvePeers(ctx, []string{msg.Sender})
	h.dispatch(ctx, types.NewMessageEvent{
		Message: compact,
		Thread: types.Thread{
			Topic:  compact.Topic,
			Peer:   peers[0],
			Latest: &compact,
			Unread: true,
		},
	})
}

func (h *Handler) handleNewConversation(ctx context.Context, conv Conversation) {
	// Warm the profile cache so the first message notification renders
	// a resolved peer.
	h.profiles.ResolvePeers(ctx, []string{conv.Peer})
}

func (h *Handler) loadSnapshots(ctx context.Context) (map[string]types.CompactMessage, error) {
	snapshots := map[string]types.CompactMessage{}
	if _, err := store.GetJSON(ctx, h.store, store.ScopeLocal, snapshotsKey, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}
