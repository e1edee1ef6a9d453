package enrichment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"deedwizard/internal/draft"
	"deedwizard/internal/enrichment"
	"deedwizard/internal/platform/logger"
	"deedwizard/pkg/platform/circuit"
)

type scriptedProvider struct {
	calls int
	errs  []error
}

func (p *scriptedProvider) ID() string { return "scripted" }

func (p *scriptedProvider) Lookup(context.Context, enrichment.AddressFacts) (draft.PropertyFacts, error) {
	p.calls++
	if len(p.errs) == 0 {
		return draft.PropertyFacts{ParcelID: "1"}, nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return draft.PropertyFacts{}, err
}

func TestGuardedProvider(t *testing.T) {
	outage := enrichment.NewProviderError(enrichment.ErrorProviderOutage, "scripted", "down", nil)
	notFound := enrichment.NewProviderError(enrichment.ErrorNotFound, "scripted", "no parcel", nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := circuit.New("enrichment",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	inner := &scriptedProvider{errs: []error{notFound, outage, outage}}
	guarded := enrichment.NewGuardedProvider(inner, breaker, logger.Discard())
	ctx := context.Background()

	_, err := guarded.Lookup(ctx, mainStreet)
	assert.Equal(t, enrichment.ErrorNotFound, enrichment.GetCategory(err))
	assert.False(t, breaker.IsOpen(), "not found does not count as a failure")

	_, _ = guarded.Lookup(ctx, mainStreet)
	_, _ = guarded.Lookup(ctx, mainStreet)
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, 3, inner.calls)

	_, err = guarded.Lookup(ctx, mainStreet)
	assert.Equal(t, enrichment.ErrorProviderOutage, enrichment.GetCategory(err))
	assert.Equal(t, 3, inner.calls, "open breaker short-circuits")

	now = now.Add(time.Minute)
	facts, err := guarded.Lookup(ctx, mainStreet)
	assert.NoError(t, err)
	assert.Equal(t, "1", facts.ParcelID)
	assert.False(t, breaker.IsOpen(), "a successful probe closes the breaker")
}
