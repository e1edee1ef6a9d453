package finalize

import (
	"strings"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	"deedwizard/pkg/domain"
	pstrings "deedwizard/pkg/platform/strings"
)

// Older drafts stored the same fact under different keys. The first
// non-blank key wins.
var (
	grantorKeys = []string{"grantorName", "grantor", "grantors", "currentOwner"}
	granteeKeys = []string{"granteeName", "grantee", "grantees", "newOwner"}
	legalKeys   = []string{"legalDescription", "legal_description", "legal"}
)

// Repair fills an empty grantor name, grantee name or legal description from
// the raw draft answers. Fields that already hold a value are never touched,
// so repairing twice yields the same record. It returns the paths it filled.
func Repair(rec canonical.Record, answers draft.Answers) (canonical.Record, []string) {
	var repaired []string

	if blank(rec.Parties.Grantor.Name) {
		keys := grantorKeys
		if rec.DocumentType == domain.DocumentTaxDeed {
			keys = append([]string{"taxCollector"}, keys...)
		}
		if v := firstAnswer(answers, keys, true); v != "" {
			rec.Parties.Grantor.Name = v
			repaired = append(repaired, canonical.PathGrantorName)
		}
	}
	if blank(rec.Parties.Grantee.Name) {
		if v := firstAnswer(answers, granteeKeys, true); v != "" {
			rec.Parties.Grantee.Name = v
			repaired = append(repaired, canonical.PathGranteeName)
		}
	}
	if blank(rec.Property.LegalDescription) {
		if v := firstAnswer(answers, legalKeys, false); v != "" {
			rec.Property.LegalDescription = v
			repaired = append(repaired, canonical.PathLegalDescription)
		}
	}
	return rec, repaired
}

// Missing lists the required paths of rec that are still blank, in
// canonical order.
func Missing(rec canonical.Record) []string {
	var missing []string
	for _, path := range canonical.RequiredPaths() {
		if blank(rec.Value(path)) {
			missing = append(missing, path)
		}
	}
	return missing
}

func firstAnswer(answers draft.Answers, keys []string, collapse bool) string {
	for _, key := range keys {
		var v string
		if list, ok := answers[key].([]any); ok {
			names := make([]string, 0, len(list))
			for _, item := range list {
				if name, ok := item.(string); ok {
					names = append(names, name)
				}
			}
			v = strings.Join(pstrings.DedupeFold(names), " and ")
		} else {
			v = answers.String(key)
		}
		if collapse {
			v = pstrings.CollapseSpace(v)
		}
		if v != "" {
			return v
		}
	}
	return ""
}

func blank(s string) bool {
	return pstrings.CollapseSpace(s) == ""
}
