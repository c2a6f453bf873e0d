// Package lease provides exclusive, long-lived holds on a user's balance
// record. A casino session acquires a lease for its whole lifetime; any
// other command path that would touch the same balance fails fast with
// the published busy reason instead of queuing behind the session.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// BalanceHold is a locked, loaded balance record. The row lock stays
// held until Persist or Abort is called, exactly once.
type BalanceHold interface {
	// Balance returns the current in-memory balance value.
	Balance() int64

	// SetBalance replaces the in-memory balance value.
	SetBalance(amount int64)

	// Persist writes the balance back and releases the row lock.
	Persist(ctx context.Context) error

	// Abort releases the row lock without writing.
	Abort(ctx context.Context) error
}

// BalanceStore locks and loads balance records. The production
// implementation lives in internal/repository; it returns
// ErrLockUnavailable when another process already holds the row lock.
type BalanceStore interface {
	FetchForUpdate(ctx context.Context, userID int64) (BalanceHold, error)
}

// busyEntry is one published reason. Entries form a per-user stack so a
// nested acquisition, released because a precondition check failed and
// the command may be retried, restores the previously queued reason
// instead of destroying it.
type busyEntry struct {
	reason    string
	sessionID string
}

// Manager tracks per-user busy reasons and hands out balance leases.
type Manager struct {
	store BalanceStore

	mu   sync.Mutex
	busy map[int64][]busyEntry
}

// NewManager creates a lease manager backed by the given store.
func NewManager(store BalanceStore) *Manager {
	return &Manager{
		store: store,
		busy:  make(map[int64][]busyEntry),
	}
}

// Acquire takes an exclusive hold on the user's balance and publishes
// the busy reason. It fails fast with *BusyError if the user is already
// busy, either in this process or (via ErrLockUnavailable from the
// store) in another one.
func (m *Manager) Acquire(ctx context.Context, userID int64, reason, sessionID string) (*Lease, error) {
	m.mu.Lock()
	if entries := m.busy[userID]; len(entries) > 0 {
		top := entries[len(entries)-1]
		m.mu.Unlock()
		return nil, &BusyError{Reason: top.reason, SessionID: top.sessionID}
	}
	m.busy[userID] = append(m.busy[userID], busyEntry{reason: reason, sessionID: sessionID})
	m.mu.Unlock()

	hold, err := m.store.FetchForUpdate(ctx, userID)
	if err != nil {
		m.pop(userID)
		if errors.Is(err, ErrLockUnavailable) {
			return nil, &BusyError{Reason: reason}
		}
		return nil, fmt.Errorf("failed to lock balance for user %d: %w", userID, err)
	}

	return &Lease{
		mgr:    m,
		userID: userID,
		hold:   hold,
	}, nil
}

// Busy reports the currently published reason for a user, if any.
func (m *Manager) Busy(userID int64) (reason, sessionID string, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.busy[userID]
	if len(entries) == 0 {
		return "", "", false
	}
	top := entries[len(entries)-1]
	return top.reason, top.sessionID, true
}

// WithReason publishes a reason for the duration of fn without taking a
// balance hold. Thin command handlers wrap their own read-modify-write
// in this so a concurrently opened session sees them as busy and vice
// versa. Popping restores whatever reason was queued below.
func (m *Manager) WithReason(userID int64, reason string, fn func() error) error {
	m.mu.Lock()
	if entries := m.busy[userID]; len(entries) > 0 {
		top := entries[len(entries)-1]
		m.mu.Unlock()
		return &BusyError{Reason: top.reason, SessionID: top.sessionID}
	}
	m.busy[userID] = append(m.busy[userID], busyEntry{reason: reason})
	m.mu.Unlock()

	defer m.pop(userID)
	return fn()
}

// pop removes the top busy entry for a user, restoring the previous one.
func (m *Manager) pop(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.busy[userID]
	if len(entries) == 0 {
		return
	}
	entries = entries[:len(entries)-1]
	if len(entries) == 0 {
		delete(m.busy, userID)
	} else {
		m.busy[userID] = entries
	}
}

// Lease is an exclusive hold on one user's balance. All balance
// mutations during a session go through the lease; Release persists the
// final value and clears the busy reason on every exit path.
type Lease struct {
	mgr    *Manager
	userID int64
	hold   BalanceHold

	mu       sync.Mutex
	released bool
}

// UserID returns the owning user.
func (l *Lease) UserID() int64 {
	return l.userID
}

// Balance returns the current balance under the lease.
func (l *Lease) Balance() int64 {
	return l.hold.Balance()
}

// Add applies a delta to the balance under the lease.
func (l *Lease) Add(delta int64) {
	l.hold.SetBalance(l.hold.Balance() + delta)
}

// Release persists the final balance, releases the row lock and clears
// the busy reason. It is idempotent; the busy reason is cleared even
// when persisting fails, so an error can never leave the user stuck.
func (l *Lease) Release(ctx context.Context) error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return nil
	}
	l.released = true
	l.mu.Unlock()

	defer l.mgr.pop(l.userID)

	if err := l.hold.Persist(ctx); err != nil {
		log.Error().Err(err).Int64("user_id", l.userID).Msg("Failed to persist balance on lease release")
		if abortErr := l.hold.Abort(ctx); abortErr != nil {
			log.Error().Err(abortErr).Int64("user_id", l.userID).Msg("Failed to abort balance hold")
		}
		return fmt.Errorf("failed to persist balance: %w", err)
	}
	return nil
}

// Abort releases the row lock without persisting and clears the busy
// reason. Used when a session never got far enough to owe a write.
func (l *Lease) Abort(ctx context.Context) error {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return nil
	}
	l.released = true
	l.mu.Unlock()

	defer l.mgr.pop(l.userID)
	return l.hold.Abort(ctx)
}
