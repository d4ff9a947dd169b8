package domain

import (
	"strings"
	"time"
)

// DealRule describes one vendor rebate rule owned by a brand.
// Empty filter lists mean "no restriction".
type DealRule struct {
	Name            string   `yaml:"name" json:"name"`
	Brand           string   `yaml:"-" json:"brand"`
	Stores          []string `yaml:"stores" json:"stores,omitempty"`
	Days            []string `yaml:"days" json:"days,omitempty"`
	Categories      []string `yaml:"categories" json:"categories,omitempty"`
	Brands          []string `yaml:"brands" json:"brands"`
	IncludePhrases  []string `yaml:"include_phrases" json:"include_phrases,omitempty"`
	ExcludedPhrases []string `yaml:"excluded_phrases" json:"excluded_phrases,omitempty"`
	Discount        float64  `yaml:"discount" json:"discount"`
	// Kickback is nil when the rule does not state one; a pointer to 0 is an explicit zero.
	Kickback *float64 `yaml:"kickback" json:"kickback,omitempty"`
}

// RuleSet is the full deal configuration for a run.
type RuleSet struct {
	// Brands maps a brand name to its rules.
	Brands map[string][]DealRule `yaml:"brands" json:"brands"`
	// KickbackTable infers a kickback fraction from a discount fraction when a rule has none.
	KickbackTable map[float64]float64 `yaml:"kickback_table" json:"kickback_table"`
}

// DefaultKickbackTable is used when the rule file does not provide its own table.
var DefaultKickbackTable = map[float64]float64{
	0.20: 0.10,
	0.25: 0.125,
	0.30: 0.15,
	0.40: 0.20,
	0.50: 0.25,
}

// Float64 returns a pointer to v, for explicit kickback values.
func Float64(v float64) *float64 {
	return &v
}

// ParseWeekday accepts full English weekday names or their three-letter prefix, in any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}
