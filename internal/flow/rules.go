package flow

import (
	"strings"
	"unicode/utf8"

	"deedwizard/internal/draft"
	"deedwizard/internal/partners"
	pstrings "deedwizard/pkg/platform/strings"
)

// Draft field names referenced by rules, adapters, and repair.
const (
	FieldPropertyAddress  = "propertyAddress"
	FieldAPN              = "apn"
	FieldCounty           = "county"
	FieldLegalDescription = "legalDescription"
	FieldGrantorName      = "grantorName"
	FieldGranteeName      = "granteeName"
	FieldVesting          = "vesting"
	FieldTaxCollector     = "taxCollector"
	FieldDTTExempt        = "dttExempt"
	FieldDTTExemptReason  = "dttExemptReason"
	FieldDTTTransferValue = "dttTransferValue"
	FieldDTTAreaType      = "dttAreaType"
	FieldDTTCityName      = "dttCityName"
)

// Tax area types.
const (
	AreaUnincorporated   = "unincorporated"
	AreaIncorporatedCity = "incorporated_city"
)

// MinLegalDescriptionLength is the shortest answer accepted as a real legal
// description.
const MinLegalDescriptionLength = 12

// legalDescriptionPlaceholders are answers that say "I don't have it".
var legalDescriptionPlaceholders = map[string]bool{
	"N/A":           true,
	"NA":            true,
	"NONE":          true,
	"NOT AVAILABLE": true,
	"PENDING":       true,
	"TBD":           true,
	"SEE ATTACHED":  true,
	"UNKNOWN":       true,
}

// LegalDescriptionSufficient reports whether v is usable as a legal
// description: non-blank, not a placeholder, and long enough.
func LegalDescriptionSufficient(v string) bool {
	v = pstrings.CollapseSpace(v)
	if v == "" {
		return false
	}
	if legalDescriptionPlaceholders[strings.ToUpper(strings.Trim(v, ".- "))] {
		return false
	}
	return utf8.RuneCountInString(v) >= MinLegalDescriptionLength
}

// Predicate decides whether a step is shown for the current draft.
type Predicate func(draft.Draft) bool

func always(draft.Draft) bool { return true }

// answers adapts a rule that only looks at the answers.
func answers(rule func(draft.Answers) bool) Predicate {
	return func(d draft.Draft) bool { return rule(d.Answers) }
}

var predicates = map[string]Predicate{
	"always": always,
	// Manual property steps hide under the same rule the draft store uses.
	"propertyNotVerified": func(d draft.Draft) bool {
		return !d.PropertyVerified()
	},
	"legalDescriptionInsufficient": answers(func(a draft.Answers) bool {
		return !LegalDescriptionSufficient(a.String(FieldLegalDescription))
	}),
	"dttExempt": answers(func(a draft.Answers) bool {
		return a.Bool(FieldDTTExempt)
	}),
	"dttNotExempt": answers(func(a draft.Answers) bool {
		return !a.Bool(FieldDTTExempt)
	}),
	"dttIncorporatedCity": answers(func(a draft.Answers) bool {
		return a.String(FieldDTTAreaType) == AreaIncorporatedCity
	}),
}

// Option is one suggestion on a select step.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionContext is the input to option providers: verified owner names and
// the partner directory.
type OptionContext struct {
	OwnerNames []string
	Partners   []partners.Partner
}

// OptionsProvider computes the suggestions of a select step.
type OptionsProvider func(OptionContext) []Option

func staticOptions(opts ...Option) OptionsProvider {
	return func(OptionContext) []Option {
		return append([]Option(nil), opts...)
	}
}

func ownerOptions(oc OptionContext) []Option {
	out := make([]Option, 0, len(oc.OwnerNames))
	for _, name := range oc.OwnerNames {
		out = append(out, Option{Value: name, Label: name})
	}
	return out
}

func partnerOptions(oc OptionContext) []Option {
	out := make([]Option, 0, len(oc.Partners))
	for _, p := range oc.Partners {
		out = append(out, Option{Value: p.Label, Label: p.Label})
	}
	return out
}

var providers = map[string]OptionsProvider{
	"owners":   ownerOptions,
	"partners": partnerOptions,
	"ownersAndPartners": func(oc OptionContext) []Option {
		return append(ownerOptions(oc), partnerOptions(oc)...)
	},
	"yesNo": staticOptions(
		Option{Value: "true", Label: "Yes"},
		Option{Value: "false", Label: "No"},
	),
	"areaTypes": staticOptions(
		Option{Value: AreaUnincorporated, Label: "Unincorporated area"},
		Option{Value: AreaIncorporatedCity, Label: "City of"},
	),
	"exemptReasons": staticOptions(
		Option{Value: "R&T 11911", Label: "R&T 11911 - no consideration (gift)"},
		Option{Value: "R&T 11925", Label: "R&T 11925 - change in form of entity"},
		Option{Value: "R&T 11927", Label: "R&T 11927 - dissolution of marriage"},
		Option{Value: "R&T 11930", Label: "R&T 11930 - transfer between spouses"},
	),
	"vesting": staticOptions(
		Option{Value: "A Single Man", Label: "A single man"},
		Option{Value: "A Single Woman", Label: "A single woman"},
		Option{Value: "A Married Man as His Sole and Separate Property", Label: "Married, sole and separate property"},
		Option{Value: "Husband and Wife as Community Property", Label: "Community property"},
		Option{Value: "Community Property with Right of Survivorship", Label: "Community property with right of survivorship"},
		Option{Value: "Joint Tenants", Label: "Joint tenants"},
		Option{Value: "Tenants in Common", Label: "Tenants in common"},
		Option{Value: "Trustee of a Trust", Label: "Trustee of a trust"},
	),
}

// dedupeOptions trims values and drops blanks and case-insensitive repeats,
// keeping the first occurrence.
func dedupeOptions(opts []Option) []Option {
	values := make([]string, len(opts))
	for i, o := range opts {
		values[i] = o.Value
	}
	keep := make(map[string]bool)
	for _, v := range pstrings.DedupeFold(values) {
		keep[strings.ToLower(v)] = true
	}

	out := make([]Option, 0, len(keep))
	for _, o := range opts {
		clean := pstrings.CollapseSpace(o.Value)
		key := strings.ToLower(clean)
		if !keep[key] {
			continue
		}
		delete(keep, key)
		label := pstrings.CollapseSpace(o.Label)
		if label == "" {
			label = clean
		}
		out = append(out, Option{Value: clean, Label: label})
	}
	return out
}
