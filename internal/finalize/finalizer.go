// Package finalize turns a reviewed canonical record into a committed deed
// and renders deed documents.
//
// Finalize repairs the three fields most often lost between the draft and
// the canonical record, refuses to send anything that is still incomplete,
// and commits exactly once. Generate runs the same Check and owns the only
// retry loop in the pipeline.
package finalize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	"deedwizard/internal/finalize/metrics"
	"deedwizard/internal/validation"
	dErrors "deedwizard/pkg/domain-errors"
)

const tracerName = "deedwizard/internal/finalize"

// Committer creates a deed in the persistence service.
type Committer interface {
	CreateDeed(ctx context.Context, p Payload, meta Meta) (DeedRef, error)
}

// Result is the outcome of Finalize. On failure Missing names the required
// fields that are still blank and Issues carries every validation problem.
type Result struct {
	Success  bool               `json:"success"`
	ID       string             `json:"id,omitempty"`
	Missing  []string           `json:"missing,omitempty"`
	Issues   []validation.Issue `json:"issues,omitempty"`
	Repaired []string           `json:"repaired,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// Finalizer commits canonical records.
type Finalizer struct {
	committer Committer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures a Finalizer or a Generator.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

func New(committer Committer, opts ...Option) *Finalizer {
	o := buildOptions(opts)
	return &Finalizer{
		committer: committer,
		logger:    o.logger,
		metrics:   o.metrics,
		tracer:    o.tracer,
	}
}

// Finalize repairs rec from the raw answers, checks it with Check and commits
// it.
//
// An incomplete record returns Success=false with a nil error and no
// network call. A commit failure returns Success=false together with a
// coded error whose message is the backend's.
func (f *Finalizer) Finalize(ctx context.Context, rec canonical.Record, answers draft.Answers, meta Meta) (Result, error) {
	docType := string(rec.DocumentType)

	ready := check(ctx, f.logger, f.metrics, rec, answers, meta)
	rec = ready.Record
	res := Result{Repaired: ready.Repaired, Missing: ready.Missing}
	if !ready.Ready() {
		res.Issues = ready.Issues
		f.metrics.ObserveFinalize(docType, metrics.OutcomeIncomplete)
		f.logger.WarnContext(ctx, "finalize blocked by incomplete record",
			"document_type", docType,
			"missing", res.Missing,
			"issues", len(ready.Issues),
			"request_id", meta.RequestID,
		)
		return res, nil
	}

	ctx, span := f.tracer.Start(ctx, "finalize.commit", trace.WithAttributes(
		attribute.String("deed.document_type", docType),
		attribute.String("deed.source", meta.Source),
	))
	defer span.End()

	start := time.Now()
	ref, err := f.committer.CreateDeed(ctx, BuildPayload(rec, meta), meta)
	f.metrics.ObserveCommit(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		f.metrics.ObserveFinalize(docType, metrics.OutcomeRejected)
		f.logger.ErrorContext(ctx, "deed commit failed",
			"document_type", docType,
			"request_id", meta.RequestID,
			"error", err,
		)
		cerr := commitError(err)
		var de *dErrors.Error
		if errors.As(cerr, &de) {
			res.Message = de.Message
		}
		return res, cerr
	}

	span.SetAttributes(attribute.String("deed.id", string(ref.ID)))
	f.metrics.ObserveFinalize(docType, metrics.OutcomeCommitted)
	f.logger.InfoContext(ctx, "deed committed",
		"document_type", docType,
		"deed_id", string(ref.ID),
		"request_id", meta.RequestID,
	)
	res.Success = true
	res.ID = string(ref.ID)
	return res, nil
}

// commitError codes a committer failure. Backend messages pass through.
func commitError(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		msg := se.Message
		if strings.TrimSpace(msg) == "" {
			msg = se.Error()
		}
		if se.ServerError() {
			return dErrors.Wrap(err, dErrors.CodeUpstream, msg)
		}
		return dErrors.Wrap(err, dErrors.CodeValidation, msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "deed commit did not complete")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "deeds service unreachable")
}
