// Package link maps domain items to externally-viewable URLs on the
// user's configured content host.
package link

import (
	"net/url"
	"strings"

	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

// Resolver builds URLs against a single content host.
type Resolver struct {
	base string
}

// New creates a resolver for the given host, e.g. "https://hey.xyz".
func New(contentHost string) *Resolver {
	return &Resolver{base: strings.TrimRight(contentHost, "/")}
}

// Notification returns the URL a notification click should open.
func (r *Resolver) Notification(item types.NotificationItem) string {
	switch item.Kind {
	case types.NotificationReaction, types.NotificationComment,
		types.NotificationMention, types.NotificationMirror,
		types.NotificationQuote, types.NotificationCollect:
		if item.Content != nil {
			return r.Publication(item.Content.ID)
		}
		return r.actor(item)
	case types.NotificationFollow:
		return r.actor(item)
	default:
		return r.Notifications()
	}
}

func (r *Resolver) actor(item types.NotificationItem) string {
	if len(item.Actors) > 0 && item.Actors[0].Handle != "" {
		return r.Profile(item.Actors[0].Handle)
	}
	return r.Notifications()
}

// Publication returns the URL of a publication by id.
func (r *Resolver) Publication(id string) string {
	return r.base + "/posts/" + url.PathEscape(id)
}

// Profile returns the URL of a profile by handle.
func (r *Resolver) Profile(handle string) string {
	return r.base + "/u/" + url.PathEscape(handle)
}

// Thread returns the URL of a message thread by topic.
func (r *Resolver) Thread(topic string) string {
	return r.base + "/messages/" + url.PathEscape(topic)
}

// Notifications returns the URL of the notifications surface.
func (r *Resolver) Notifications() string {
	return r.base + "/notifications"
}
