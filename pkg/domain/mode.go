package domain

import dErrors "deedwizard/pkg/domain-errors"

// Mode is a session presentation track. The two modes never share a storage
// namespace and drafts are never migrated between them.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeModern  Mode = "modern"
)

var validModes = map[Mode]bool{
	ModeClassic: true,
	ModeModern:  true,
}

// AllModes lists both modes in a stable order.
func AllModes() []Mode {
	return []Mode{ModeClassic, ModeModern}
}

// ParseMode validates a mode taken from a URL or request body.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown session mode")
	}
	return m, nil
}

func (m Mode) IsValid() bool {
	return validModes[m]
}

func (m Mode) String() string {
	return string(m)
}
