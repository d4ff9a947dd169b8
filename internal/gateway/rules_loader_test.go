package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"retail-forecaster/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleSet(t *testing.T) {
	doc := []byte(`
kickback_table:
  0.5: 0.25
brands:
  Acme:
    - name: acme-monday
      days: [Monday, tue]
      categories: [Flower]
      brands: [Acme, ACME Farms]
      excluded_phrases: [shake]
      discount: 0.5
    - name: acme-zero
      discount: 0.3
      kickback: 0
  Zen:
    - discount: 0.2
      kickback: 0.3
`)

	rules, err := ParseRuleSet(doc)
	require.NoError(t, err)

	assert.Equal(t, map[float64]float64{0.5: 0.25}, rules.KickbackTable)
	require.Len(t, rules.Brands["Acme"], 2)

	monday := rules.Brands["Acme"][0]
	assert.Equal(t, "Acme", monday.Brand)
	assert.Equal(t, []string{"Monday", "tue"}, monday.Days)
	assert.Nil(t, monday.Kickback, "absent kickback stays nil")

	zero := rules.Brands["Acme"][1]
	require.NotNil(t, zero.Kickback, "explicit zero is kept")
	assert.Equal(t, 0.0, *zero.Kickback)
	assert.Equal(t, []string{"Acme"}, zero.Brands, "tokens default to the brand name")

	zen := rules.Brands["Zen"][0]
	assert.Equal(t, "Zen#1", zen.Name)
	assert.Equal(t, domain.Float64(0.3), zen.Kickback)
}

func TestParseRuleSet_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "typo in rule key", doc: "brands:\n  Acme:\n    - discont: 0.5\n"},
		{name: "discount out of range", doc: "brands:\n  Acme:\n    - discount: 50\n"},
		{name: "kickback out of range", doc: "brands:\n  Acme:\n    - kickback: -0.1\n"},
		{name: "unknown weekday", doc: "brands:\n  Acme:\n    - days: [Funday]\n"},
		{name: "bad table entry", doc: "kickback_table:\n  0.5: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleSet([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRuleSet(t *testing.T) {
	t.Run("empty file is an empty rule set", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deals.yaml")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		rules, err := LoadRuleSet(path)
		require.NoError(t, err)
		assert.Empty(t, rules.Brands)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRuleSet(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
