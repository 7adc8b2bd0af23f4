// Package messaging talks to the peer-to-peer encrypted messaging
// network: conversation listing, message queries, and live streams.
package messaging

import (
	"context"
	"errors"
	"sync"

	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// ErrNoKeyMaterial is returned when no private key is stored for the
// wallet address a client is being resolved for.
var ErrNoKeyMaterial = errors.New("messaging: no key material for address")

// Conversation is a network conversation with a single counterpart.
type Conversation struct {
	Topic string `json:"topic"`
	Peer  string `json:"peer"`
}

// Message is a live network message. It holds transport-layer detail
// and must not be persisted; project to types.CompactMessage first.
type Message struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	SentAt  int64  `json:"sent_at"`
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// Compact projects a live message to its persistable form.
func Compact(m Message) types.CompactMessage {
	return types.CompactMessage{
		Timestamp: m.SentAt,
		Topic:     m.Topic,
		Content:   m.Content,
		Sender:    m.Sender,
	}
}

// QueryDirection orders message queries.
type QueryDirection int

const (
	// Descending returns newest messages first.
	Descending QueryDirection = iota
	// Ascending returns oldest messages first.
	Ascending
)

// StreamEvent is one event from a live subscription: either a new
// conversation or a new message.
type StreamEvent struct {
	Conversation *Conversation `json:"conversation,omitempty"`
	Message      *Message      `json:"message,omitempty"`
}

// Client is the messaging-network session for one wallet address.
type Client interface {
	// ListConversations returns every known conversation.
	ListConversations(ctx context.Context) ([]Conversation, error)
	// QueryMessages returns up to limit messages of conv, starting at
	// startTime (unix milli, 0 for unbounded).
	QueryMessages(ctx context.Context, conv Conversation, dir QueryDirection, limit int, startTime int64) ([]Message, error)
	// StreamConversations subscribes to newly created conversations.
	StreamConversations(ctx context.Context) (*Subscription, error)
	// StreamMessages subscribes to new messages across all
	// conversations.
	StreamMessages(ctx context.Context) (*Subscription, error)
	// Close tears down the session.
	Close() error
}

// Subscription is an explicitly cancellable stream handle. Consumers
// must call Close on every exit path; Close stops the underlying
// network stream and releases its cursor.
type Subscription struct {
	events chan StreamEvent
	done   chan struct{}
	once   sync.Once
	stop   func()

	mu     sync.Mutex
	closed bool
}

// NewSubscription builds a subscription whose producer pushes through
// Emit and honors Done. stop is invoked exactly once on Close.
func NewSubscription(buffer int, stop func()) *Subscription {
	return &Subscription{
		events: make(chan StreamEvent, buffer),
		done:   make(chan struct{}),
		stop:   stop,
	}
}

// Events is the stream of incoming events. It is closed after Close.
func (s *Subscription) Events() <-chan StreamEvent {
	return s.events
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Emit pushes an event to the consumer, dropping it if the
// subscription is closed or the consumer is not keeping up.
func (s *Subscription) Emit(e StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
	}
}

// Close cancels the subscription. Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}

// Factory resolves a messaging client for a wallet address, requiring
// locally-stored key material.
type Factory interface {
	ResolveClient(ctx context.Context, address string) (Client, error)
}

// Handle is the process-wide, lazily-initialized client. It replaces
// an implicit global: init happens on the first successful key
// resolution, teardown on daemon shutdown or key change.
type Handle struct {
	mu      sync.Mutex
	factory Factory
	address string
	client  Client
}

// NewHandle creates an uninitialized handle for address.
func NewHandle(factory Factory, address string) *Handle {
	return &Handle{factory: factory, address: address}
}

// Get returns the client, resolving it on first use.
func (h *Handle) Get(ctx context.Context) (Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return h.client, nil
	}
	client, err := h.factory.ResolveClient(ctx, h.address)
	if err != nil {
		return nil, err
	}
	h.client = client
	return client, nil
}

// Reset closes the current client so the next Get re-resolves it.
// Called when key material changes on disk.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		_ = h.client.Close()
		h.client = nil
	}
}

// Close tears the handle down for good.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}
