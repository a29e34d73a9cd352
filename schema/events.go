package schema

// SessionEventType distinguishes state transitions from status-only updates.
type SessionEventType string

const (
	// SessionEventState marks a state transition.
	SessionEventState SessionEventType = "state"
	// SessionEventStatus marks a status update within the current state.
	SessionEventStatus SessionEventType = "status"
)

// SessionEvent is emitted to collaborators at every transition and status
// update of the RAM disk session.
type SessionEvent struct {
	Type SessionEventType `json:"type"`
	// Warning marks a downgraded failure (persistence, formatting,
	// readiness) that did not abort the sequence.
	Warning  bool            `json:"warning,omitempty"`
	Snapshot SessionSnapshot `json:"snapshot"`
}
