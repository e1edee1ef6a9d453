// Package contract holds reusable checks every enrichment provider must pass.
package contract

import (
	"context"
	"testing"

	"deedwizard/internal/draft"
	"deedwizard/internal/enrichment"
)

// LookupTest defines a successful lookup case
type LookupTest struct {
	Name         string
	Input        enrichment.AddressFacts
	ValidateFunc func(facts draft.PropertyFacts) error
}

// ErrorTest validates that provider errors follow the taxonomy
type ErrorTest struct {
	Name          string
	Input         enrichment.AddressFacts
	ExpectedError enrichment.ErrorCategory
	ExpectedRetry bool
}

// Suite is a collection of contract tests for one provider
type Suite struct {
	Provider enrichment.Provider
	Lookups  []LookupTest
	Errors   []ErrorTest
}

// Run executes all contract tests in the suite
func (s *Suite) Run(t *testing.T) {
	t.Helper()
	if s.Provider.ID() == "" {
		t.Error("provider ID not set")
	}

	for _, test := range s.Lookups {
		t.Run(test.Name, func(t *testing.T) {
			facts, err := s.Provider.Lookup(context.Background(), test.Input)
			if err != nil {
				t.Fatalf("provider lookup failed: %v", err)
			}

			// Every verified property must carry a parcel and an address.
			if facts.ParcelID == "" {
				t.Error("parcel id not set")
			}
			if facts.Address == "" {
				t.Error("address not set")
			}

			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(facts); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}

	for _, test := range s.Errors {
		t.Run(test.Name, func(t *testing.T) {
			_, err := s.Provider.Lookup(context.Background(), test.Input)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if category := enrichment.GetCategory(err); category != test.ExpectedError {
				t.Errorf("expected error category %s, got %s", test.ExpectedError, category)
			}
			if retryable := enrichment.IsRetryable(err); retryable != test.ExpectedRetry {
				t.Errorf("expected retryable=%v, got %v", test.ExpectedRetry, retryable)
			}
		})
	}
}
