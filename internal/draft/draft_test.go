package draft

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwizard/pkg/domain"
)

func TestAnswersAccessors(t *testing.T) {
	a := Answers{
		"name":     "  Ada Lovelace ",
		"exempt":   "Yes",
		"flag":     true,
		"value":    float64(450000),
		"fraction": 0.5,
		"count":    3,
		"nothing":  nil,
	}

	assert.Equal(t, "Ada Lovelace", a.String("name"))
	assert.Equal(t, "450000", a.String("value"))
	assert.Equal(t, "0.5", a.String("fraction"))
	assert.Equal(t, "3", a.String("count"))
	assert.Equal(t, "true", a.String("flag"))
	assert.Equal(t, "", a.String("nothing"))
	assert.Equal(t, "", a.String("missing"))

	assert.True(t, a.Bool("exempt"))
	assert.True(t, a.Bool("flag"))
	assert.False(t, a.Bool("name"))
	assert.False(t, a.Bool("missing"))

	assert.True(t, a.Has("name"))
	assert.False(t, a.Has("nothing"))
}

func TestEncodeDecode(t *testing.T) {
	t.Run("uses the persisted field names", func(t *testing.T) {
		d := Draft{
			Answers:          Answers{"grantorName": "Ada"},
			VerifiedProperty: &PropertyFacts{ParcelID: "123", OwnerNames: []string{"Ada"}},
			DocumentType:     domain.DocumentGrantDeed,
			LastModified:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		raw, err := Encode(d)
		require.NoError(t, err)

		var generic map[string]any
		require.NoError(t, json.Unmarshal(raw, &generic))
		assert.Contains(t, generic, "answers")
		assert.Contains(t, generic, "verifiedData")
		assert.Equal(t, "grant_deed", generic["documentType"])
		assert.Equal(t, "2026-01-02T03:04:05Z", generic["timestamp"])
	})

	t.Run("keeps legacy document type spellings verbatim", func(t *testing.T) {
		d, err := Decode([]byte(`{"answers":null,"documentType":"Quitclaim-Deed","timestamp":"2026-01-01T00:00:00Z"}`))
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentType("Quitclaim-Deed"), d.DocumentType)
		assert.NotNil(t, d.Answers)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := Decode([]byte(`[]`))
		assert.Error(t, err)
	})
}

func TestCloneIsDeep(t *testing.T) {
	d := Draft{
		Answers:          Answers{"a": "1"},
		VerifiedProperty: &PropertyFacts{OwnerNames: []string{"Ada"}},
	}
	c := d.Clone()
	c.Answers["a"] = "2"
	c.VerifiedProperty.OwnerNames[0] = "Grace"

	assert.Equal(t, "1", d.Answers["a"])
	assert.Equal(t, "Ada", d.VerifiedProperty.OwnerNames[0])
}
