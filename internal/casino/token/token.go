// Package token encodes the composite identifiers attached to casino
// inline-keyboard controls. Every control carries "<session-id>:<action>",
// so an inbound callback can be routed back to the session that rendered it.
package token

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// Separator splits the session id from the action name.
	Separator = ":"

	// IDLength is the length of a session id (canonical UUID string).
	IDLength = 36
)

// NewSessionID generates a fresh session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Encode builds the callback data for one control of a session.
func Encode(sessionID, action string) string {
	return sessionID + Separator + action
}

// Decode splits callback data back into (sessionID, action).
// It returns ok=false when the data does not split into exactly two
// parts on the first separator, or when the id part has the wrong
// length. Stale and foreign tokens are expected in a long-lived chat
// history, so callers treat ok=false as a silent no-op.
func Decode(data string) (sessionID, action string, ok bool) {
	idx := strings.Index(data, Separator)
	if idx < 0 {
		return "", "", false
	}

	sessionID = data[:idx]
	action = data[idx+1:]

	if len(sessionID) != IDLength || action == "" {
		return "", "", false
	}

	return sessionID, action, true
}
