package enrichment

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"deedwizard/internal/draft"
)

// StaticProvider returns deterministic facts derived from the address. It is
// the development provider; the same address always yields the same parcel.
type StaticProvider struct {
	Latency time.Duration
	// Records overrides the synthesized facts for exact street matches
	// (case-insensitive).
	Records map[string]draft.PropertyFacts
}

func (p StaticProvider) ID() string {
	return "static"
}

func (p StaticProvider) Lookup(ctx context.Context, address AddressFacts) (draft.PropertyFacts, error) {
	if err := address.Validate(); err != nil {
		return draft.PropertyFacts{}, NewProviderError(ErrorBadData, p.ID(), "invalid address", err)
	}
	if p.Latency > 0 {
		select {
		case <-ctx.Done():
			return draft.PropertyFacts{}, NewProviderError(ErrorTimeout, p.ID(), "lookup cancelled", ctx.Err())
		case <-time.After(p.Latency):
		}
	}
	for street, facts := range p.Records {
		if strings.EqualFold(street, address.Street) {
			return facts.Clone(), nil
		}
	}
	if strings.Contains(strings.ToLower(address.Street), "nowhere") {
		return draft.PropertyFacts{}, NewProviderError(ErrorNotFound, p.ID(), "no parcel", nil)
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(address.OneLine())))
	sum := h.Sum64()
	return draft.PropertyFacts{
		Address:          address.OneLine(),
		ParcelID:         fmt.Sprintf("%03d-%03d-%03d", sum%1000, (sum/1000)%1000, (sum/1000000)%1000),
		County:           countyFor(address),
		LegalDescription: fmt.Sprintf("LOT %d OF TRACT NO. %d, AS PER MAP RECORDED IN BOOK %d PAGE %d", sum%90+1, sum%9000+1000, sum%400+1, sum%80+1),
		OwnerNames:       []string{"CURRENT OWNER OF RECORD"},
	}, nil
}

// countyFor maps a few California ZIP prefixes; everything else is Los Angeles.
func countyFor(a AddressFacts) string {
	switch {
	case strings.HasPrefix(a.Zip, "921"):
		return "San Diego"
	case strings.HasPrefix(a.Zip, "941"):
		return "San Francisco"
	case strings.HasPrefix(a.Zip, "946"):
		return "Alameda"
	case strings.HasPrefix(a.Zip, "958"):
		return "Sacramento"
	default:
		return "Los Angeles"
	}
}
