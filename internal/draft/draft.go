// Package draft holds in-progress wizard answers per session mode.
//
// A Store is bound to one browsing session. It keeps one draft per Mode under
// its own backend key and never reads or writes another mode's key. Reads and
// writes are only honoured once the Store has hydrated from its backend; before
// that, reads return an empty draft and writes are dropped so defaults can never
// overwrite state that has not been loaded yet.
package draft

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"deedwizard/pkg/domain"
)

// FieldPropertyVerified is the answer tag set by MarkVerified.
const FieldPropertyVerified = "propertyVerified"

// Answers maps a step field name to a scalar value (string, bool, or number).
type Answers map[string]any

// PropertyFacts are externally verified property details. They are written by
// the enrichment collaborator and read-only to the wizard.
type PropertyFacts struct {
	Address          string   `json:"address,omitempty"`
	ParcelID         string   `json:"parcelId,omitempty"`
	County           string   `json:"county,omitempty"`
	LegalDescription string   `json:"legalDescription,omitempty"`
	OwnerNames       []string `json:"ownerNames,omitempty"`
}

// Draft is the in-progress state of one wizard in one mode.
type Draft struct {
	Answers          Answers             `json:"answers"`
	VerifiedProperty *PropertyFacts      `json:"verifiedData,omitempty"`
	DocumentType     domain.DocumentType `json:"documentType"`
	LastModified     time.Time           `json:"lastModified"`
}

// PropertyVerified reports whether the property was confirmed by lookup: the
// verified flag is set, or verified facts carry a parcel id or address.
func (d Draft) PropertyVerified() bool {
	if d.Answers.Bool(FieldPropertyVerified) {
		return true
	}
	if v := d.VerifiedProperty; v != nil {
		return v.ParcelID != "" || v.Address != ""
	}
	return false
}

// Empty returns a draft with an initialized, empty answer map.
func Empty() Draft {
	return Draft{Answers: Answers{}}
}

// IsEmpty reports whether nothing has been recorded yet.
func (d Draft) IsEmpty() bool {
	return len(d.Answers) == 0 && d.VerifiedProperty == nil && d.DocumentType == ""
}

// Clone deep-copies the draft so callers can never mutate cached state.
func (d Draft) Clone() Draft {
	out := Draft{
		Answers:      d.Answers.Clone(),
		DocumentType: d.DocumentType,
		LastModified: d.LastModified,
	}
	if d.VerifiedProperty != nil {
		facts := d.VerifiedProperty.Clone()
		out.VerifiedProperty = &facts
	}
	return out
}

// Clone copies the facts including the owner list.
func (p PropertyFacts) Clone() PropertyFacts {
	p.OwnerNames = slices.Clone(p.OwnerNames)
	return p
}

// Clone copies the answer map. A nil map becomes an empty one.
func (a Answers) Clone() Answers {
	if a == nil {
		return Answers{}
	}
	return maps.Clone(a)
}

// Merge applies patch on top of a. A nil value in patch removes the field.
func (a Answers) Merge(patch Answers) Answers {
	out := a.Clone()
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// String returns the answer as trimmed text. Numbers are formatted without
// exponent; missing or nil values yield "".
func (a Answers) String(field string) string {
	switch v := a[field].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Bool interprets the answer as a yes/no flag. Strings such as "yes" and
// "true" count as true; anything unrecognized is false.
func (a Answers) Bool(field string) bool {
	switch v := a[field].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return true
		}
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// Has reports whether the field has a non-blank value.
func (a Answers) Has(field string) bool {
	return a.String(field) != ""
}

// record is the persisted JSON shape of a draft.
type record struct {
	Answers      Answers        `json:"answers"`
	VerifiedData *PropertyFacts `json:"verifiedData,omitempty"`
	DocumentType string         `json:"documentType"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Encode serializes a draft into its persisted form.
func Encode(d Draft) ([]byte, error) {
	return json.Marshal(record{
		Answers:      d.Answers.Clone(),
		VerifiedData: d.VerifiedProperty,
		DocumentType: string(d.DocumentType),
		Timestamp:    d.LastModified.UTC(),
	})
}

// Decode parses a persisted draft. The document type is kept verbatim, legacy
// spellings included; adapter selection normalizes it later.
func Decode(data []byte) (Draft, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	d := Draft{
		Answers:          r.Answers.Clone(),
		VerifiedProperty: r.VerifiedData,
		DocumentType:     domain.DocumentType(r.DocumentType),
		LastModified:     r.Timestamp,
	}
	return d, nil
}
