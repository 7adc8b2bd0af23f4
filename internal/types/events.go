package types

// Event is a domain event the notification dispatcher consumes.
// Implementations form a closed set; dispatch switches on the concrete
// type.
type Event interface {
	isEvent()
}

// NewNotificationsEvent carries the novel feed items of one poll cycle.
type NewNotificationsEvent struct {
	Items []NotificationItem
}

// NewMessageEvent carries one unread message and its thread.
type NewMessageEvent struct {
	Message CompactMessage
	Thread  Thread
}

// ActionOutcomeEvent reports a pending action reaching a state worth
// telling the user about.
type ActionOutcomeEvent struct {
	Action PendingAction
	Status ActionStatus
}

// PublicationConfirmedEvent reports a user's own publication landing
// on-chain.
type PublicationConfirmedEvent struct {
	PublicationID string
	Kind          string
}

func (NewNotificationsEvent) isEvent()     {}
func (NewMessageEvent) isEvent()           {}
func (ActionOutcomeEvent) isEvent()        {}
func (PublicationConfirmedEvent) isEvent() {}
