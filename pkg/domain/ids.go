package domain

import (
	"github.com/google/uuid"

	dErrors "deedwizard/pkg/domain-errors"
)

// SessionID scopes drafts to one browsing session. It is a typed UUID so a
// session id can never be confused with a deed id.
type SessionID uuid.UUID

// DeedID is the identifier assigned by the persistence service. It is opaque.
type DeedID string

// ParseSessionID validates a session id at a trust boundary.
//
// Errors: CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	if u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id cannot be nil")
	}
	return SessionID(u), nil
}

// NewSessionID mints a random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the id is the zero UUID.
func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}
