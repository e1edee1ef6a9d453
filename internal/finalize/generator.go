package finalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	"deedwizard/internal/finalize/metrics"
	dErrors "deedwizard/pkg/domain-errors"
	"deedwizard/pkg/platform/retry"
)

// ErrRetriesExhausted is returned when every generation attempt failed with
// a server-side or transport error.
var ErrRetriesExhausted = dErrors.New(dErrors.CodeUnavailable, "document generation failed after retries")

// DocumentRenderer renders one document per call.
type DocumentRenderer interface {
	GenerateDocument(ctx context.Context, p Payload, meta Meta) (Document, error)
}

// Generator renders deed documents with a bounded retry.
type Generator struct {
	renderer DocumentRenderer
	retry    retry.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func NewGenerator(renderer DocumentRenderer, cfg retry.Config, opts ...Option) *Generator {
	o := buildOptions(opts)
	return &Generator{
		renderer: renderer,
		retry:    cfg,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
	}
}

// Generate repairs and checks rec exactly as Finalize does, then renders it.
// Server errors and transport failures are retried per the configured
// schedule; 4xx responses end the call on the first attempt.
func (g *Generator) Generate(ctx context.Context, rec canonical.Record, answers draft.Answers, meta Meta) (Document, error) {
	ready := check(ctx, g.logger, g.metrics, rec, answers, meta)
	if err := ready.Err(); err != nil {
		g.metrics.ObserveGeneration(metrics.GenerationIncomplete, 0)
		g.logger.WarnContext(ctx, "generation blocked by incomplete record",
			"document_type", string(rec.DocumentType),
			"missing", ready.Missing,
			"issues", len(ready.Issues),
			"request_id", meta.RequestID,
		)
		return Document{}, err
	}
	rec = ready.Record

	ctx, span := g.tracer.Start(ctx, "finalize.generate", trace.WithAttributes(
		attribute.String("deed.document_type", string(rec.DocumentType)),
	))
	defer span.End()

	payload := BuildPayload(rec, meta)
	cfg := g.retry
	cfg.OnRetry = func(attempt int, err error) {
		g.logger.WarnContext(ctx, "document generation failed, retrying",
			"attempt", attempt,
			"request_id", meta.RequestID,
			"error", err,
		)
	}

	attempts := 0
	doc, err := retry.DoWithResult(ctx, cfg, func(attempt int) (Document, error) {
		attempts = attempt
		doc, err := g.renderer.GenerateDocument(ctx, payload, meta)
		if err == nil {
			return doc, nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.ServerError() {
			return Document{}, retry.NonRetryable(err)
		}
		return Document{}, err
	})
	span.SetAttributes(attribute.Int("generation.attempts", attempts))
	if err == nil {
		g.metrics.ObserveGeneration(metrics.GenerationSucceeded, attempts)
		return doc, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "generation failed")
	g.logger.ErrorContext(ctx, "document generation failed",
		"attempts", attempts,
		"request_id", meta.RequestID,
		"error", err,
	)

	var se *StatusError
	switch {
	case retry.IsNonRetryable(err) && errors.As(err, &se):
		g.metrics.ObserveGeneration(metrics.GenerationTerminal, attempts)
		msg := se.Message
		if msg == "" {
			msg = se.Error()
		}
		return Document{}, dErrors.Wrap(err, dErrors.CodeValidation, msg)
	case errors.Is(err, retry.ErrExhausted):
		g.metrics.ObserveGeneration(metrics.GenerationExhausted, attempts)
		return Document{}, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
	default:
		g.metrics.ObserveGeneration(metrics.GenerationCancelled, attempts)
		return Document{}, dErrors.Wrap(err, dErrors.CodeTimeout, "document generation cancelled")
	}
}
