package lease

import (
	"errors"
	"fmt"
)

// Lease-related errors.
var (
	// ErrLockUnavailable is returned by a BalanceStore when another
	// process already holds the row lock for the user's balance.
	ErrLockUnavailable = errors.New("balance row lock unavailable")

	// ErrLeaseReleased is returned when a released lease is used.
	ErrLeaseReleased = errors.New("lease already released")
)

// BusyError signals that a conflicting operation is already running for
// the user. Reason is the human-readable text published at acquisition;
// SessionID, when non-empty, identifies the session holding the lease so
// callers can offer a "force leave" control.
type BusyError struct {
	Reason    string
	SessionID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("user busy: %s", e.Reason)
}
