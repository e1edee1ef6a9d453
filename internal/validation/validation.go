// Package validation checks a canonical record for legal completeness.
//
// Structural and required-field checks come from an embedded JSON Schema;
// cross-field rules are Go functions per document type. Every issue is
// collected in one pass and reported in a stable order. Nothing is corrected
// here; repair belongs to the finalizer.
package validation

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"deedwizard/internal/canonical"
)

//go:embed record.schema.json
var recordSchema []byte

// SeverityError is the only severity this pipeline produces.
const SeverityError = "error"

// Issue is one problem found in a record.
type Issue struct {
	FieldPath string `json:"fieldPath"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
}

// Result is the outcome of Validate.
type Result struct {
	OK     bool    `json:"ok"`
	Issues []Issue `json:"issues"`
}

// Paths lists the field paths with issues, in report order.
func (r Result) Paths() []string {
	out := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		out[i] = issue.FieldPath
	}
	return out
}

var schema = mustCompile(recordSchema)

func mustCompile(doc []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("compile record schema: %v", err))
	}
	return s
}

// requiredMessages phrase the six required fields for people.
var requiredMessages = map[string]string{
	canonical.PathPropertyAddress:  "Property address is required",
	canonical.PathParcelID:         "Parcel number (APN) is required",
	canonical.PathCounty:           "County is required",
	canonical.PathLegalDescription: "Legal description is required",
	canonical.PathGrantorName:      "Grantor name is required",
	canonical.PathGranteeName:      "Grantee name is required",
}

// Validate evaluates rec against the schema and the rules of its type.
func Validate(rec canonical.Record) Result {
	var issues []Issue

	res, err := schema.Validate(gojsonschema.NewGoLoader(rec))
	if err != nil {
		issues = append(issues, Issue{FieldPath: "", Message: "record could not be checked: " + err.Error(), Severity: SeverityError})
	} else {
		for _, e := range res.Errors() {
			issues = append(issues, schemaIssue(e))
		}
	}
	for _, rule := range rulesFor(rec) {
		issues = append(issues, rule(rec)...)
	}

	issues = normalize(issues)
	return Result{OK: len(issues) == 0, Issues: issues}
}

func schemaIssue(e gojsonschema.ResultError) Issue {
	path := e.Field()
	if path == "(root)" {
		path = ""
	}
	if e.Type() == "required" {
		if prop, ok := e.Details()["property"].(string); ok {
			path = strings.TrimPrefix(path+"."+prop, ".")
		}
	}
	msg, ok := requiredMessages[path]
	if !ok {
		msg = e.Description()
	}
	return Issue{FieldPath: path, Message: msg, Severity: SeverityError}
}

// normalize drops repeated paths and orders the required fields first, in
// their canonical order, then everything else by path.
func normalize(issues []Issue) []Issue {
	rank := func(path string) int {
		if i := slices.Index(canonical.RequiredPaths(), path); i >= 0 {
			return i
		}
		return len(canonical.RequiredPaths())
	}
	slices.SortStableFunc(issues, func(a, b Issue) int {
		if ra, rb := rank(a.FieldPath), rank(b.FieldPath); ra != rb {
			return ra - rb
		}
		return strings.Compare(a.FieldPath, b.FieldPath)
	})
	return slices.CompactFunc(issues, func(a, b Issue) bool {
		return a.FieldPath == b.FieldPath
	})
}
