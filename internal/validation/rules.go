package validation

import (
	"strconv"
	"strings"

	"deedwizard/internal/canonical"
	"deedwizard/internal/flow"
	"deedwizard/pkg/domain"
)

// Rule is a cross-field check the schema cannot express.
type Rule func(canonical.Record) []Issue

var commonRules = []Rule{transferTaxRule, mailToRule}

// rulesFor returns the rules of the record's type.
func rulesFor(rec canonical.Record) []Rule {
	switch rec.DocumentType {
	case domain.DocumentInterspousalTransfer:
		return append([]Rule{interspousalRule}, commonRules...)
	default:
		return commonRules
	}
}

func issue(path, msg string) Issue {
	return Issue{FieldPath: path, Message: msg, Severity: SeverityError}
}

func transferTaxRule(rec canonical.Record) []Issue {
	tt := rec.TransferTax
	if tt == nil {
		return nil
	}
	var out []Issue
	if tt.IsExempt && strings.TrimSpace(tt.ExemptReason) == "" {
		out = append(out, issue("transferTax.exemptReason", "An exemption reason is required for an exempt transfer"))
	}
	if !tt.IsExempt {
		switch value := strings.TrimSpace(tt.TransferValue); {
		case value == "":
			out = append(out, issue("transferTax.transferValue", "A transfer value is required when the transfer is not exempt"))
		case !isAmount(value):
			out = append(out, issue("transferTax.transferValue", "Transfer value must be a non-negative amount"))
		}
	}
	if tt.AreaType == flow.AreaIncorporatedCity && strings.TrimSpace(tt.CityName) == "" {
		out = append(out, issue("transferTax.cityName", "City name is required for property inside city limits"))
	}
	return out
}

// interspousalRule requires a transfer tax declaration.
func interspousalRule(rec canonical.Record) []Issue {
	if rec.TransferTax == nil {
		return []Issue{issue("transferTax", "Interspousal transfers must declare their transfer tax status")}
	}
	return nil
}

func mailToRule(rec canonical.Record) []Issue {
	m := rec.MailTo
	if m == nil {
		return nil
	}
	var out []Issue
	if strings.TrimSpace(m.Street) == "" {
		out = append(out, issue("mailTo.street", "Mailing street is required when a mailing address is given"))
	}
	if strings.TrimSpace(m.City) == "" {
		out = append(out, issue("mailTo.city", "Mailing city is required when a mailing address is given"))
	}
	return out
}

// isAmount accepts "650000", "$650,000.00" and the like.
func isAmount(v string) bool {
	v = strings.NewReplacer("$", "", ",", "").Replace(v)
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil && f >= 0
}
