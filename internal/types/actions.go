package types

// ActionState is the observed state of a server-mediated async action.
type ActionState string

const (
	ActionQueued       ActionState = "queued"
	ActionMinting      ActionState = "minting"
	ActionTransferring ActionState = "transferring"
	ActionComplete     ActionState = "complete"
	ActionError        ActionState = "error"
)

// Terminal reports whether the state ends the action's lifecycle.
func (s ActionState) Terminal() bool {
	return s == ActionComplete || s == ActionError
}

// ActionKind names the operation a pending action performs.
type ActionKind string

const (
	ActionFollow  ActionKind = "follow"
	ActionCollect ActionKind = "collect"
)

// PendingAction is the context retained for an in-flight async action,
// keyed by the server-issued action id.
type PendingAction struct {
	ID          string     `json:"id"`
	Kind        ActionKind `json:"kind"`
	Handle      string     `json:"handle,omitempty"`
	ProfileID   string     `json:"profile_id,omitempty"`
	SubmittedAt int64      `json:"submitted_at"`
}

// ActionStatus is the result of polling an action's state upstream.
type ActionStatus struct {
	State  ActionState `json:"state"`
	TxHash string      `json:"tx_hash,omitempty"`
	Reason string      `json:"reason,omitempty"`
}
