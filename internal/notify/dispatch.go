// Package notify converts domain events into OS notifications and
// derives the unread badge.
package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/FocalizeApp/focalize-daemon/internal/link"
	"github.com/FocalizeApp/focalize-daemon/internal/readstate"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// GroupID is the fixed notification id of the grouped aggregate.
const GroupID = "focalize.notifications.group"

// target remembers what a raised notification points at, so clicks and
// closes can be resolved later.
type target struct {
	url     string
	topic   string
	readAt  int64
	message bool
}

// Dispatcher turns domain events into Surface calls.
type Dispatcher struct {
	surface  Surface
	links    *link.Resolver
	reads    *readstate.Tracker
	opener   func(url string) error
	logger   *log.Logger
	grouped  bool
	pageSize int

	mu      sync.Mutex
	targets map[string]target
}

// New creates a dispatcher. pageSize is the feed page limit and caps
// the grouped count label. opener opens a URL in the user's browser.
func New(surface Surface, links *link.Resolver, reads *readstate.Tracker, opener func(string) error, logger *log.Logger, grouped bool, pageSize int) *Dispatcher {
	return &Dispatcher{
		surface:  surface,
		links:    links,
		reads:    reads,
		opener:   opener,
		logger:   logger,
		grouped:  grouped,
		pageSize: pageSize,
		targets:  make(map[string]target),
	}
}

// Dispatch raises zero or more OS notifications for the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event types.Event) {
	switch e := event.(type) {
	case types.NewNotificationsEvent:
		d.dispatchNotifications(e.Items)
	case types.NewMessageEvent:
		d.dispatchMessage(e)
	case types.ActionOutcomeEvent:
		d.dispatchActionOutcome(e)
	case types.PublicationConfirmedEvent:
		d.dispatchPublication(e)
	}
}

func (d *Dispatcher) dispatchNotifications(items []types.NotificationItem) {
	if len(items) == 0 {
		return
	}
	if d.grouped {
		label := GroupLabel(len(items), d.pageSize)
		d.raise(Notification{
			ID:        GroupID,
			Title:     "Focalize",
			Body:      label + " new notifications",
			EventTime: items[0].EventTime(),
		}, target{url: d.links.Notifications()})
		return
	}
	for _, item := range items {
		d.raise(Notification{
			ID:                 item.ID,
			Title:              actorLabel(item),
			Body:               ActionText(item.Kind),
			RequireInteraction: RequiresInteraction(item.Kind),
			EventTime:          item.EventTime(),
		}, target{url: d.links.Notification(item)})
	}
}

func (d *Dispatcher) dispatchMessage(e types.NewMessageEvent) {
	d.raise(Notification{
		ID:        e.Thread.Topic,
		Title:     e.Thread.Peer.Label(),
		Body:      truncate(e.Message.Content, 100),
		EventTime: e.Message.Timestamp,
	}, target{
		url:     d.links.Thread(e.Thread.Topic),
		topic:   e.Thread.Topic,
		readAt:  e.Message.Timestamp,
		message: true,
	})
}

func (d *Dispatcher) dispatchActionOutcome(e types.ActionOutcomeEvent) {
	id := "action." + e.Action.ID
	switch e.Status.State {
	case types.ActionComplete:
		d.raise(Notification{
			ID:    id,
			Title: "Focalize",
			Body:  actionCompleteText(e.Action),
		}, target{url: d.links.Profile(e.Action.Handle)})
	case types.ActionError:
		body := actionErrorText(e.Action)
		if e.Status.Reason != "" {
			body += ": " + e.Status.Reason
		}
		d.raise(Notification{
			ID:                 id,
			Title:              "Focalize",
			Body:               body,
			RequireInteraction: true,
		}, target{url: d.links.Profile(e.Action.Handle)})
	}
}

func (d *Dispatcher) dispatchPublication(e types.PublicationConfirmedEvent) {
	kind := e.Kind
	if kind == "" {
		kind = "post"
	}
	d.raise(Notification{
		ID:    "publication." + e.PublicationID,
		Title: "Focalize",
		Body:  "Your " + kind + " has been published",
	}, target{url: d.links.Publication(e.PublicationID)})
}

func (d *Dispatcher) raise(n Notification, tgt target) {
	d.mu.Lock()
	d.targets[n.ID] = tgt
	d.mu.Unlock()
	if err := d.surface.Notify(n); err != nil {
		d.logger.Printf("notify: raise %s: %v", n.ID, err)
	}
}

// HandleClick opens the target URL of a raised notification.
func (d *Dispatcher) HandleClick(ctx context.Context, id string) {
	d.mu.Lock()
	tgt, ok := d.targets[id]
	d.mu.Unlock()
	if !ok {
		return
	}
	if err := d.opener(tgt.url); err != nil {
		d.logger.Printf("notify: open %s: %v", tgt.url, err)
	}
	_ = d.surface.Clear(id)
}

// HandleClose marks a message thread read when the user dismissed its
// notification themselves.
func (d *Dispatcher) HandleClose(ctx context.Context, id string, byUser bool) {
	d.mu.Lock()
	tgt, ok := d.targets[id]
	delete(d.targets, id)
	d.mu.Unlock()
	if !ok || !byUser || !tgt.message {
		return
	}
	if err := d.reads.MarkRead(ctx, tgt.topic, tgt.readAt); err != nil {
		d.logger.Printf("notify: mark read on close: %v", err)
	}
}

// GroupLabel renders the grouped count: exact below the page limit,
// "(limit-1)+" once the page is full, signaling at least this many.
func GroupLabel(count, pageSize int) string {
	if pageSize > 0 && count >= pageSize {
		return fmt.Sprintf("%d+", pageSize-1)
	}
	return strconv.Itoa(count)
}

// ActionText is the per-kind body of an individual notification.
func ActionText(kind types.NotificationKind) string {
	switch kind {
	case types.NotificationReaction:
		return "liked your post"
	case types.NotificationComment:
		return "commented on your post"
	case types.NotificationMention:
		return "mentioned you"
	case types.NotificationMirror:
		return "mirrored your post"
	case types.NotificationQuote:
		return "quoted your post"
	case types.NotificationFollow:
		return "followed you"
	case types.NotificationCollect:
		return "collected your post"
	default:
		return "interacted with you"
	}
}

// RequiresInteraction marks kinds the user must dismiss explicitly.
func RequiresInteraction(kind types.NotificationKind) bool {
	switch kind {
	case types.NotificationComment, types.NotificationMention:
		return true
	case types.NotificationReaction, types.NotificationMirror,
		types.NotificationQuote, types.NotificationFollow,
		types.NotificationCollect:
		return false
	default:
		return false
	}
}

func actorLabel(item types.NotificationItem) string {
	if len(item.Actors) == 0 {
		return "Someone"
	}
	first := item.Actors[0]
	label := first.DisplayName
	if label == "" && first.Handle != "" {
		label = "@" + first.Handle
	}
	if label == "" {
		label = "Someone"
	}
	if extra := len(item.Actors) - 1; extra > 0 {
		label += fmt.Sprintf(" and %d others", extra)
	}
	return label
}

func actionCompleteText(a types.PendingAction) string {
	switch a.Kind {
	case types.ActionFollow:
		return "You are now following @" + a.Handle
	case types.ActionCollect:
		return "Collected successfully"
	default:
		return "Action completed"
	}
}

func actionErrorText(a types.PendingAction) string {
	switch a.Kind {
	case types.ActionFollow:
		return "Could not follow @" + a.Handle
	case types.ActionCollect:
		return "Collect failed"
	default:
		return "Action failed"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
