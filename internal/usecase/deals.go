package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/logger"
)

// DealRuleEngine resolves vendor kickback rules against transaction rows.
type DealRuleEngine struct {
	rules         []compiledRule
	kickbackTable map[float64]float64
	knownStores   []string
}

type compiledRule struct {
	domain.DealRule
	days     map[time.Weekday]bool
	kickback float64
}

// NewDealRuleEngine creates an engine for one rule set. knownStores is the default
// allow-list for rules that do not name their stores.
func NewDealRuleEngine(rules domain.RuleSet, knownStores []string) *DealRuleEngine {
	table := rules.KickbackTable
	if len(table) == 0 {
		table = domain.DefaultKickbackTable
	}

	e := &DealRuleEngine{
		kickbackTable: table,
		knownStores:   knownStores,
	}

	// Sorted so that equal kickbacks resolve identically on every run.
	brands := make([]string, 0, len(rules.Brands))
	for brand := range rules.Brands {
		brands = append(brands, brand)
	}
	sort.Strings(brands)

	for _, brand := range brands {
		for _, rule := range rules.Brands[brand] {
			rule.Brand = brand
			cr := compiledRule{DealRule: rule, days: make(map[time.Weekday]bool)}
			for _, d := range rule.Days {
				if wd, ok := domain.ParseWeekday(d); ok {
					cr.days[wd] = true
				} else {
					logger.Warn("ignoring unknown weekday in deal rule",
						zap.String("brand", brand), zap.String("rule", rule.Name), zap.String("day", d))
				}
			}
			cr.kickback = e.resolveKickback(rule)
			e.rules = append(e.rules, cr)
		}
	}
	return e
}

// Apply enriches every row with its deal match for the given store.
func (e *DealRuleEngine) Apply(rows []domain.TransactionRow, storeCode string) []domain.EnrichedRow {
	enriched := make([]domain.EnrichedRow, len(rows))
	best := make([]int, len(rows)) // index into e.rules, -1 when unmatched
	hits := make([]int, len(rows))
	for i := range best {
		best[i] = -1
	}

	brands := make([]string, len(rows))
	for i, row := range rows {
		brands[i] = ParseBrand(row.ProductName)
	}

	for ri, rule := range e.rules {
		if !e.storeAllowed(rule, storeCode) {
			continue
		}

		// Pass 1: rows passing the non-brand filters.
		candidates := make([]int, 0)
		for i, row := range rows {
			if rule.matchesFilters(row) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		// Pass 2: exact brand-token match on the parsed brand.
		matched := make([]int, 0)
		for _, i := range candidates {
			if rule.matchesBrandExact(brands[i]) {
				matched = append(matched, i)
			}
		}

		// Pass 3: substring fallback, only when the exact pass found nothing for this rule.
		if len(matched) == 0 {
			for _, i := range candidates {
				if rule.matchesBrandLoose(rows[i].ProductName) {
					matched = append(matched, i)
				}
			}
		}

		for _, i := range matched {
			hits[i]++
			if best[i] == -1 || rule.kickback > e.rules[best[i]].kickback {
				best[i] = ri
			}
		}
	}

	overlaps := 0
	for i, row := range rows {
		if hits[i] > 1 {
			overlaps++
		}
		var match domain.DealMatch
		if best[i] >= 0 {
			rule := e.rules[best[i]]
			match = applyKickback(row, rule.kickback)
			match.Matched = true
			match.MatchedBrand = rule.Brand
			match.MatchedRule = rule.Name
		} else {
			match = applyKickback(row, 0)
		}
		enriched[i] = domain.EnrichedRow{TransactionRow: row, Deal: match}
	}

	if overlaps > 0 {
		logger.Debug("overlapping deal rules resolved by max kickback",
			zap.String("store", storeCode), zap.Int("rows", overlaps))
	}
	return enriched
}

// ParseBrand returns the first non-empty "|"-delimited segment of a product name,
// or the trimmed name itself when there is no delimiter.
func ParseBrand(productName string) string {
	if !strings.Contains(productName, "|") {
		return strings.TrimSpace(productName)
	}
	for _, seg := range strings.Split(productName, "|") {
		if seg = strings.TrimSpace(seg); seg != "" {
			return seg
		}
	}
	return strings.TrimSpace(productName)
}

// resolveKickback prefers an explicit kickback (zero included) over the discount table.
func (e *DealRuleEngine) resolveKickback(rule domain.DealRule) float64 {
	if rule.Kickback != nil {
		return *rule.Kickback
	}
	for discount, kickback := range e.kickbackTable {
		if math.Abs(discount-rule.Discount) < 1e-9 {
			return kickback
		}
	}
	return 0
}

func (e *DealRuleEngine) storeAllowed(rule compiledRule, storeCode string) bool {
	stores := rule.Stores
	if len(stores) == 0 {
		if len(e.knownStores) == 0 {
			return true
		}
		stores = e.knownStores
	}
	return containsFold(stores, storeCode)
}

func (r compiledRule) matchesFilters(row domain.TransactionRow) bool {
	if len(r.days) > 0 && !r.days[row.Date.Weekday()] {
		return false
	}
	if len(r.Categories) > 0 && !containsFold(r.Categories, strings.TrimSpace(row.Category)) {
		return false
	}
	name := strings.ToLower(row.ProductName)
	if len(r.IncludePhrases) > 0 && !anySubstring(name, r.IncludePhrases) {
		return false
	}
	if anySubstring(name, r.ExcludedPhrases) {
		return false
	}
	return true
}

func (r compiledRule) matchesBrandExact(brand string) bool {
	for _, token := range r.Brands {
		if strings.TrimSpace(token) == brand {
			return true
		}
	}
	return false
}

func (r compiledRule) matchesBrandLoose(productName string) bool {
	return anySubstring(strings.ToLower(productName), r.Brands)
}

// applyKickback computes the real and kickback-adjusted cost and profit of a row.
func applyKickback(row domain.TransactionRow, fraction float64) domain.DealMatch {
	cost := decimal.NewFromFloat(row.Cost)
	profit := decimal.NewFromFloat(row.NetSales).Sub(cost)
	if row.Profit != nil {
		profit = decimal.NewFromFloat(*row.Profit)
	}
	kickback := cost.Mul(decimal.NewFromFloat(fraction))

	return domain.DealMatch{
		KickbackFraction: fraction,
		CostReal:         cost.InexactFloat64(),
		CostAdjusted:     cost.Sub(kickback).InexactFloat64(),
		ProfitReal:       profit.InexactFloat64(),
		ProfitAdjusted:   profit.Add(kickback).InexactFloat64(),
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

// anySubstring expects lowered to already be lower-case.
func anySubstring(lowered string, phrases []string) bool {
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}
