// Package audit records what happened to a wizard session: drafts started and
// cleared, properties verified, deeds committed and documents generated.
//
// Events are append-only. The wizard service emits them through a
// publisher.Publisher, which writes to a Store synchronously or through a
// bounded buffer.
package audit

import (
	"context"
	"time"

	"deedwizard/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so stores
// can apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: a deed was
	// recorded or a document was produced for signing.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for support and
	// debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the wizard service to capture key actions. Keep it
// transport-agnostic so stores can fan out.
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	Session      domain.SessionID
	Mode         domain.Mode
	Action       string
	DocumentType domain.DocumentType
	// DeedID is set once the persistence backend has accepted the deed.
	DeedID    domain.DeedID
	Decision  string
	Reason    string
	RequestID string
	// ClientFlow names the UI flow that triggered the action.
	ClientFlow string
}

type AuditEvent string

const (
	EventDraftStarted     AuditEvent = "draft_started"
	EventDraftCleared     AuditEvent = "draft_cleared"
	EventPropertyVerified AuditEvent = "property_verified"

	EventDeedCommitted    AuditEvent = "deed_committed"
	EventFinalizeRejected AuditEvent = "finalize_rejected"
	EventFinalizeFailed   AuditEvent = "finalize_failed"

	EventDocumentGenerated AuditEvent = "document_generated"
	EventGenerationFailed  AuditEvent = "generation_failed"
)

// Decision values.
const (
	DecisionAccepted = "accepted"
	DecisionRejected = "rejected"
	DecisionFailed   = "failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDeedCommitted:     CategoryCompliance,
	EventDocumentGenerated: CategoryCompliance,

	EventDraftStarted:     CategoryOperations,
	EventDraftCleared:     CategoryOperations,
	EventPropertyVerified: CategoryOperations,
	EventFinalizeRejected: CategoryOperations,
	EventFinalizeFailed:   CategoryOperations,
	EventGenerationFailed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	// ListBySession returns a session's events oldest first.
	ListBySession(ctx context.Context, session domain.SessionID) ([]Event, error)
}
