package notify

import (
	"sync"

	"github.com/gen2brain/beeep"
)

// Notification is one OS notification request. ID is stable: raising
// the same id again replaces the previous notification instead of
// stacking a duplicate.
type Notification struct {
	ID                 string
	Title              string
	Body               string
	Icon               string
	RequireInteraction bool
	EventTime          int64
}

// Surface raises and clears OS notifications.
type Surface interface {
	Notify(n Notification) error
	Clear(id string) error
}

// BeeepSurface shows notifications through the desktop notification
// daemon. beeep has no id-addressed replace or clear, so the surface
// keeps its own registry: re-raising an id it has already shown is
// treated as an update and only re-notifies when the body changed.
type BeeepSurface struct {
	mu    sync.Mutex
	shown map[string]Notification
}

// NewBeeepSurface returns a desktop-backed surface.
func NewBeeepSurface() *BeeepSurface {
	return &BeeepSurface{shown: make(map[string]Notification)}
}

// Notify implements Surface.
func (s *BeeepSurface) Notify(n Notification) error {
	s.mu.Lock()
	prev, seen := s.shown[n.ID]
	s.shown[n.ID] = n
	s.mu.Unlock()

	if seen && prev.Title == n.Title && prev.Body == n.Body {
		return nil
	}
	if n.RequireInteraction {
		return beeep.Alert(n.Title, n.Body, n.Icon)
	}
	return beeep.Notify(n.Title, n.Body, n.Icon)
}

// Clear implements Surface.
func (s *BeeepSurface) Clear(id string) error {
	s.mu.Lock()
	delete(s.shown, id)
	s.mu.Unlock()
	return nil
}
