//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseSessionID checks that parsing never panics and that accepted ids
// round-trip.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err == nil {
			roundTrip, err2 := ParseSessionID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzNormalizeDocumentType checks that a normalized value is always valid.
func FuzzNormalizeDocumentType(f *testing.F) {
	f.Add("grant-deed")
	f.Add("Quit Claim Deed")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		got, ok := NormalizeDocumentType(input)
		if ok && !got.IsValid() {
			t.Errorf("normalized %q to invalid type %q", input, got)
		}
		if !ok && got != "" {
			t.Errorf("unmatched %q returned non-empty type %q", input, got)
		}
	})
}
