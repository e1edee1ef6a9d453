package domain

import (
	"strings"

	dErrors "deedwizard/pkg/domain-errors"
)

// DocumentType identifies which conveyance instrument a draft describes.
// Invariant: the value is one of the supported document types.
//
// Usage: construct via ParseDocumentType at trust boundaries. Legacy spellings
// coming from stored drafts go through NormalizeDocumentType instead.
type DocumentType string

const (
	DocumentGrantDeed            DocumentType = "grant_deed"
	DocumentQuitclaimDeed        DocumentType = "quitclaim_deed"
	DocumentInterspousalTransfer DocumentType = "interspousal_transfer"
	DocumentWarrantyDeed         DocumentType = "warranty_deed"
	DocumentTaxDeed              DocumentType = "tax_deed"
)

// DefaultDocumentType is the most common instrument and the fallback for
// unrecognized legacy spellings.
const DefaultDocumentType = DocumentGrantDeed

// validDocumentTypes is the single source of truth for supported types.
var validDocumentTypes = map[DocumentType]bool{
	DocumentGrantDeed:            true,
	DocumentQuitclaimDeed:        true,
	DocumentInterspousalTransfer: true,
	DocumentWarrantyDeed:         true,
	DocumentTaxDeed:              true,
}

// documentTypeAliases maps folded legacy spellings to canonical values.
var documentTypeAliases = map[string]DocumentType{
	"grant":             DocumentGrantDeed,
	"granted":           DocumentGrantDeed,
	"quitclaim":         DocumentQuitclaimDeed,
	"quit_claim":        DocumentQuitclaimDeed,
	"quit_claim_deed":   DocumentQuitclaimDeed,
	"interspousal":      DocumentInterspousalTransfer,
	"interspousal_deed": DocumentInterspousalTransfer,
	"warranty":          DocumentWarrantyDeed,
	"tax":               DocumentTaxDeed,
}

// AllDocumentTypes lists the supported types in a stable order.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentGrantDeed,
		DocumentQuitclaimDeed,
		DocumentInterspousalTransfer,
		DocumentWarrantyDeed,
		DocumentTaxDeed,
	}
}

// ParseDocumentType accepts only canonical spellings.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseDocumentType(s string) (DocumentType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document type cannot be empty")
	}
	t := DocumentType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported document type")
	}
	return t, nil
}

// NormalizeDocumentType folds case, hyphens, spaces and short aliases onto a
// canonical value. ok is false when nothing matched; the returned type is then
// empty and the caller decides whether to fall back.
func NormalizeDocumentType(s string) (DocumentType, bool) {
	folded := strings.ToLower(strings.TrimSpace(s))
	folded = strings.NewReplacer("-", "_", " ", "_").Replace(folded)
	if t := DocumentType(folded); t.IsValid() {
		return t, true
	}
	if t, ok := documentTypeAliases[folded]; ok {
		return t, true
	}
	return "", false
}

// IsValid checks membership in the supported set.
func (t DocumentType) IsValid() bool {
	return validDocumentTypes[t]
}

func (t DocumentType) String() string {
	return string(t)
}
