package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"retail-forecaster/internal/domain"
)

// LoadRuleSet reads the deal configuration from a YAML file:
//
//	kickback_table:
//	  0.5: 0.25
//	brands:
//	  Acme:
//	    - name: acme-monday
//	      days: [Monday]
//	      brands: [Acme]
//	      discount: 0.5
//	      kickback: 0.3
//
// Unknown keys are rejected so that a misspelled filter never silently widens a rule.
func LoadRuleSet(path string) (domain.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("failed to read deal rules %s: %w", path, err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes and validates a YAML rule document.
func ParseRuleSet(data []byte) (domain.RuleSet, error) {
	var rules domain.RuleSet

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return domain.RuleSet{}, fmt.Errorf("failed to parse deal rules: %w", err)
	}

	if rules.Brands == nil {
		rules.Brands = make(map[string][]domain.DealRule)
	}
	for brand, list := range rules.Brands {
		for i := range list {
			rule := &list[i]
			rule.Brand = brand
			if rule.Name == "" {
				rule.Name = fmt.Sprintf("%s#%d", brand, i+1)
			}
			// A rule without tokens matches its own brand name.
			if len(rule.Brands) == 0 {
				rule.Brands = []string{brand}
			}
			if err := validateRule(*rule); err != nil {
				return domain.RuleSet{}, err
			}
		}
	}
	for discount, kickback := range rules.KickbackTable {
		if discount < 0 || discount > 1 || kickback < 0 || kickback > 1 {
			return domain.RuleSet{}, fmt.Errorf("kickback table entry %v: %v out of range [0, 1]", discount, kickback)
		}
	}
	return rules, nil
}

func validateRule(rule domain.DealRule) error {
	if rule.Discount < 0 || rule.Discount > 1 {
		return fmt.Errorf("rule %s: discount %v out of range [0, 1]", rule.Name, rule.Discount)
	}
	if rule.Kickback != nil && (*rule.Kickback < 0 || *rule.Kickback > 1) {
		return fmt.Errorf("rule %s: kickback %v out of range [0, 1]", rule.Name, *rule.Kickback)
	}
	var bad []string
	for _, d := range rule.Days {
		if _, ok := domain.ParseWeekday(d); !ok {
			bad = append(bad, d)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("rule %s: unknown weekdays %s", rule.Name, strings.Join(bad, ", "))
	}
	return nil
}
