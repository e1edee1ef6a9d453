// Package strings provides string helpers for names and free-text answers.
package strings

import (
	"strings"
)

// CollapseSpace trims s and folds every run of whitespace to one space.
//
//	CollapseSpace("  JOHN \t DOE ") // "JOHN DOE"
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DedupeFold removes blanks and case-insensitive duplicates, keeping the first
// spelling seen with its whitespace collapsed. Order is preserved.
//
//	DedupeFold([]string{"JOHN DOE", " john  doe", "", "Jane Smith"})
//	// Returns: []string{"JOHN DOE", "Jane Smith"}
func DedupeFold(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		clean := CollapseSpace(v)
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, clean)
	}

	return result
}
