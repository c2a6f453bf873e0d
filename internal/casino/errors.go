package casino

import "errors"

// Session errors.
var (
	// ErrDuplicateSession is returned when a user who already owns a
	// registered session tries to register another. Callers hold the
	// user's lease before registering, so hitting this is an invariant
	// breach, not a normal error path.
	ErrDuplicateSession = errors.New("user already has an active session")

	// ErrInvalidAction marks an inbound action that is not legal for
	// the session's current state. Legal controls are the only ones
	// ever rendered, so this implies a stale render or a protocol
	// violation and closes the session.
	ErrInvalidAction = errors.New("action not legal for current state")
)

// CloseReason classifies why a session is closing. Every reason routes
// through the single close protocol; only stakes validation failures
// are handled locally and never close the session.
type CloseReason int

const (
	// CloseLeave is a user-initiated close from the session's own menu.
	CloseLeave CloseReason = iota
	// CloseExternalLeave is a close triggered from outside the
	// session's own message, e.g. the leave button on a busy notice.
	CloseExternalLeave
	// CloseTimeout is a per-wait timeout with no qualifying event.
	CloseTimeout
	// CloseIdle is the idle sweep's wall-clock inactivity close.
	CloseIdle
	// CloseInvalidAction is the defensive close on an illegal action.
	CloseInvalidAction
	// CloseFailure is any unexpected error surfaced while rendering or
	// resolving a turn.
	CloseFailure
)

func (r CloseReason) String() string {
	switch r {
	case CloseLeave:
		return "leave"
	case CloseExternalLeave:
		return "external_leave"
	case CloseTimeout:
		return "timeout"
	case CloseIdle:
		return "idle"
	case CloseInvalidAction:
		return "invalid_action"
	case CloseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// CloseRequest carries a session close decision up through the turn
// routines to the close protocol. Using an explicit value instead of
// panic-style control flow keeps "every exit path reaches the close
// protocol" visible in the function signatures.
type CloseRequest struct {
	Reason CloseReason
	Event  *Event // triggering inbound event, if any
	Err    error  // underlying error for CloseInvalidAction / CloseFailure
}
