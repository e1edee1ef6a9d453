// Package postgres stores audit events in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deedwizard/pkg/domain"
	audit "deedwizard/pkg/platform/audit"
)

const schema = `
	CREATE TABLE IF NOT EXISTS wizard_audit_events (
		id            UUID PRIMARY KEY,
		seq           BIGINT GENERATED ALWAYS AS IDENTITY,
		category      TEXT NOT NULL,
		occurred_at   TIMESTAMPTZ NOT NULL,
		session_id    UUID NOT NULL,
		mode          TEXT NOT NULL,
		action        TEXT NOT NULL,
		document_type TEXT NOT NULL DEFAULT '',
		deed_id       TEXT NOT NULL DEFAULT '',
		decision      TEXT NOT NULL DEFAULT '',
		reason        TEXT NOT NULL DEFAULT '',
		request_id    TEXT NOT NULL DEFAULT '',
		client_flow   TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS wizard_audit_events_session_idx
		ON wizard_audit_events (session_id, seq)
`

// Store implements audit.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the audit table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate wizard_audit_events: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO wizard_audit_events (
			id, category, occurred_at, session_id, mode, action,
			document_type, deed_id, decision, reason, request_id, client_flow
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.New().String(),
		string(event.Category),
		event.Timestamp,
		event.Session.String(),
		string(event.Mode),
		event.Action,
		string(event.DocumentType),
		string(event.DeedID),
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ClientFlow,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, session domain.SessionID) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, mode, action, document_type, deed_id,
			decision, reason, request_id, client_flow
		FROM wizard_audit_events
		WHERE session_id = $1
		ORDER BY seq
	`
	rows, err := s.pool.Query(ctx, query, session.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var (
			e                               audit.Event
			category, mode, docType, deedID string
		)
		if err := row.Scan(&category, &e.Timestamp, &mode, &e.Action, &docType, &deedID,
			&e.Decision, &e.Reason, &e.RequestID, &e.ClientFlow); err != nil {
			return audit.Event{}, err
		}
		e.Category = audit.EventCategory(category)
		e.Session = session
		e.Mode = domain.Mode(mode)
		e.DocumentType = domain.DocumentType(docType)
		e.DeedID = domain.DeedID(deedID)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	return events, nil
}
