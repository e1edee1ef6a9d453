// Package enrichment looks up verified property facts for an address.
//
// The wizard service calls a Provider when the user confirms an address and
// stores the result with draft.Store.MarkVerified. Nothing in the draft,
// flow, or finalize packages calls a provider directly.
package enrichment

import (
	"context"
	"strings"

	"deedwizard/internal/draft"
	dErrors "deedwizard/pkg/domain-errors"
)

// AddressFacts is what the user typed before lookup.
type AddressFacts struct {
	Street string `json:"address"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Validate trims the fields and requires a street plus city or zip.
func (a *AddressFacts) Validate() error {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
	a.Zip = strings.TrimSpace(a.Zip)
	if a.Street == "" {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if a.City == "" && a.Zip == "" {
		return dErrors.New(dErrors.CodeValidation, "city or zip is required")
	}
	return nil
}

// OneLine renders the address as a single line.
func (a AddressFacts) OneLine() string {
	parts := []string{a.Street}
	if a.City != "" {
		parts = append(parts, a.City)
	}
	if stateZip := strings.TrimSpace(a.State + " " + a.Zip); stateZip != "" {
		parts = append(parts, stateZip)
	}
	return strings.Join(parts, ", ")
}

// Provider resolves an address to verified property facts.
type Provider interface {
	// ID identifies the provider in logs and errors.
	ID() string
	Lookup(ctx context.Context, address AddressFacts) (draft.PropertyFacts, error)
}

// ToDomainError translates a lookup failure for the transport layer.
func ToDomainError(err error) error {
	if err == nil {
		return nil
	}
	switch GetCategory(err) {
	case ErrorNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, "no parcel matched the address")
	case ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "property lookup timed out")
	case ErrorProviderOutage, ErrorRateLimited:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "property lookup is unavailable")
	case ErrorBadData, ErrorContractMismatch, ErrorAuthentication:
		return dErrors.Wrap(err, dErrors.CodeUpstream, "property lookup failed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "property lookup failed")
	}
}
