package casino

import (
	"sync"

	"telegram-casino-bot/internal/casino/token"
)

// Registry is the process-wide mapping from users to their active
// casino session. It enforces one session per user and resolves inbound
// action tokens to the owning session. It is the only casino structure
// mutated from multiple goroutines (command handlers, callback
// handlers, the idle sweep), so iteration always goes through
// SnapshotIDs.
type Registry struct {
	mu     sync.RWMutex
	byUser map[int64]*Session
	byID   map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[int64]*Session),
		byID:   make(map[string]*Session),
	}
}

// Register adds a session. Callers already hold the user's lease, so a
// duplicate here is an invariant breach; it fails with
// ErrDuplicateSession rather than replacing the entry.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUser[s.UserID()]; exists {
		return ErrDuplicateSession
	}
	r.byUser[s.UserID()] = s
	r.byID[s.ID()] = s
	return nil
}

// Unregister removes a user's session. Idempotent; called exactly once
// per session, at the start of the close protocol.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(r.byUser, userID)
	delete(r.byID, s.ID())
}

// FindByToken decodes callback data and resolves it to a registered
// session and action. ok=false covers malformed tokens, unknown session
// ids and unknown action names alike; stale controls in old chat
// messages make all three routine, so callers silently no-op.
func (r *Registry) FindByToken(data string) (*Session, Action, bool) {
	sessionID, actionName, ok := token.Decode(data)
	if !ok {
		return nil, 0, false
	}

	action, ok := ParseAction(actionName)
	if !ok {
		return nil, 0, false
	}

	r.mu.RLock()
	s, ok := r.byID[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, 0, false
	}
	return s, action, true
}

// ByUser returns the user's active session, if any.
func (r *Registry) ByUser(userID int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// Get returns a session by id.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[sessionID]
	return s, ok
}

// SnapshotIDs returns a point-in-time copy of the registered session
// ids. The idle sweep iterates over the snapshot so concurrent
// registration and teardown cannot corrupt its iteration; ids that
// vanish before lookup are simply skipped.
func (r *Registry) SnapshotIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll asks every registered session to close with the given
// request. Used at shutdown; sessions that disappear between the
// snapshot and the lookup are skipped.
func (r *Registry) CloseAll(req CloseRequest) {
	for _, id := range r.SnapshotIDs() {
		if s, ok := r.Get(id); ok {
			s.RequestClose(req)
		}
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
