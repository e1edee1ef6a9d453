package wizard

import (
	"context"

	"deedwizard/internal/finalize"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
	audit "deedwizard/pkg/platform/audit"
	"deedwizard/pkg/requestcontext"
)

// Auditor receives the audit trail of wizard sessions.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// WithAuditor records session events. Audit failures are logged and never
// fail the operation.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func (s *Service) emit(ctx context.Context, ref Ref, action audit.AuditEvent, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Session = ref.Session
	event.Mode = ref.Mode
	event.Action = string(action)
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"session", ref.Session.String(),
			"error", err,
		)
	}
}

func (s *Service) auditFinalize(ctx context.Context, ref Ref, docType domain.DocumentType, meta finalize.Meta, res finalize.Result, err error) {
	event := audit.Event{
		DocumentType: docType,
		RequestID:    meta.RequestID,
		ClientFlow:   meta.ClientFlow,
	}
	switch {
	case err != nil:
		event.Decision = audit.DecisionFailed
		event.Reason = string(dErrors.CodeOf(err))
		s.emit(ctx, ref, audit.EventFinalizeFailed, event)
	case !res.Success:
		event.Decision = audit.DecisionRejected
		event.Reason = "incomplete"
		if len(res.Missing) == 0 {
			event.Reason = "invalid"
		}
		s.emit(ctx, ref, audit.EventFinalizeRejected, event)
	default:
		event.Decision = audit.DecisionAccepted
		event.DeedID = domain.DeedID(res.ID)
		s.emit(ctx, ref, audit.EventDeedCommitted, event)
	}
}

func (s *Service) auditGenerate(ctx context.Context, ref Ref, docType domain.DocumentType, meta finalize.Meta, err error) {
	event := audit.Event{
		DocumentType: docType,
		RequestID:    meta.RequestID,
		ClientFlow:   meta.ClientFlow,
	}
	if err != nil {
		event.Decision = audit.DecisionFailed
		event.Reason = string(dErrors.CodeOf(err))
		s.emit(ctx, ref, audit.EventGenerationFailed, event)
		return
	}
	event.Decision = audit.DecisionAccepted
	s.emit(ctx, ref, audit.EventDocumentGenerated, event)
}
