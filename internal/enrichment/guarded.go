package enrichment

import (
	"context"
	"log/slog"

	"deedwizard/internal/draft"
	"deedwizard/pkg/platform/circuit"
)

// GuardedProvider stops calling a provider that keeps failing. While the
// breaker is open, lookups fail fast as an outage except for one probe per
// cooldown. Only retryable failures count against the provider; a parcel
// that does not exist is a healthy answer.
type GuardedProvider struct {
	inner   Provider
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuardedProvider(inner Provider, breaker *circuit.Breaker, logger *slog.Logger) *GuardedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedProvider{inner: inner, breaker: breaker, logger: logger}
}

func (p *GuardedProvider) ID() string {
	return p.inner.ID()
}

func (p *GuardedProvider) Lookup(ctx context.Context, address AddressFacts) (draft.PropertyFacts, error) {
	if !p.breaker.Allow() {
		return draft.PropertyFacts{}, NewProviderError(ErrorProviderOutage, p.ID(), "circuit open", nil)
	}

	facts, err := p.inner.Lookup(ctx, address)
	if err != nil && IsRetryable(err) {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "property lookup circuit opened",
				"provider", p.ID(),
				"breaker", p.breaker.Name(),
				"error", err,
			)
		}
		return facts, err
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "property lookup circuit closed",
			"provider", p.ID(),
			"breaker", p.breaker.Name(),
		)
	}
	return facts, err
}
