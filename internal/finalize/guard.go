package finalize

import (
	"context"
	"log/slog"
	"strings"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	"deedwizard/internal/finalize/metrics"
	"deedwizard/internal/validation"
	dErrors "deedwizard/pkg/domain-errors"
)

// Readiness is the outcome of the check run before a record leaves the
// process, for commit and for generation alike.
type Readiness struct {
	Record   canonical.Record
	Repaired []string
	Missing  []string
	Issues   []validation.Issue
	Valid    bool
}

// Ready reports whether the record may be sent.
func (r Readiness) Ready() bool {
	return r.Valid && len(r.Missing) == 0
}

// Err describes an unready record as a CodeIncomplete error. It is nil when
// the record is ready.
func (r Readiness) Err() error {
	if r.Ready() {
		return nil
	}
	if len(r.Missing) > 0 {
		return dErrors.New(dErrors.CodeIncomplete, "missing required fields: "+strings.Join(r.Missing, ", "))
	}
	paths := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		paths[i] = issue.FieldPath
	}
	return dErrors.New(dErrors.CodeIncomplete, "record has validation issues: "+strings.Join(paths, ", "))
}

// Check repairs rec from the raw answers, validates the result and lists the
// required fields still blank. It makes no network call.
func Check(rec canonical.Record, answers draft.Answers) Readiness {
	rec, repaired := Repair(rec, answers)
	res := validation.Validate(rec)
	return Readiness{
		Record:   rec,
		Repaired: repaired,
		Missing:  Missing(rec),
		Issues:   res.Issues,
		Valid:    res.OK,
	}
}

// check runs Check and records what was repaired.
func check(ctx context.Context, logger *slog.Logger, m *metrics.Metrics, rec canonical.Record, answers draft.Answers, meta Meta) Readiness {
	r := Check(rec, answers)
	for _, path := range r.Repaired {
		m.ObserveRepair(path)
	}
	if len(r.Repaired) > 0 {
		logger.InfoContext(ctx, "repaired canonical record from draft answers",
			"document_type", string(rec.DocumentType),
			"fields", r.Repaired,
			"request_id", meta.RequestID,
		)
	}
	return r
}
