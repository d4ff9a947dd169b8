package usecase_test

import (
	"testing"
	"time"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-09-01 is a Monday.
var monday = time.Date(2025, 9, 1, 14, 30, 0, 0, time.UTC)

func TestParseBrand(t *testing.T) {
	tests := []struct {
		name    string
		product string
		want    string
	}{
		{name: "first segment", product: "Acme | Blue Dream | 3.5g", want: "Acme"},
		{name: "leading empty segment", product: " | Acme | Gummies", want: "Acme"},
		{name: "no delimiter", product: "  Acme Gummies ", want: "Acme Gummies"},
		{name: "only delimiters", product: "|", want: "|"},
		{name: "empty", product: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usecase.ParseBrand(tt.product))
		})
	}
}

func TestDealRuleEngine_Apply(t *testing.T) {
	row := func(product string) domain.TransactionRow {
		return domain.TransactionRow{Date: monday, OrderID: "O1", ProductName: product, Category: "Edibles", NetSales: 200, Cost: 100}
	}

	tests := []struct {
		name        string
		rules       map[string][]domain.DealRule
		knownStores []string
		store       string
		rows        []domain.TransactionRow
		want        []domain.DealMatch
	}{
		{
			name: "maximum kickback wins on overlap",
			rules: map[string][]domain.DealRule{
				"Acme": {
					{Name: "low", Brands: []string{"Acme"}, Kickback: domain.Float64(0.20)},
					{Name: "high", Brands: []string{"Acme"}, Kickback: domain.Float64(0.30)},
				},
			},
			store: "MV",
			rows:  []domain.TransactionRow{row("Acme | Gummies")},
			want: []domain.DealMatch{
				{Matched: true, KickbackFraction: 0.30, CostReal: 100, CostAdjusted: 70, ProfitReal: 100, ProfitAdjusted: 130, MatchedBrand: "Acme", MatchedRule: "high"},
			},
		},
		{
			name: "explicit zero kickback beats the table and keeps provenance",
			rules: map[string][]domain.DealRule{
				"Acme": {{Name: "promo only", Brands: []string{"Acme"}, Discount: 0.30, Kickback: domain.Float64(0)}},
			},
			store: "MV",
			rows:  []domain.TransactionRow{row("Acme | Gummies")},
			want: []domain.DealMatch{
				{Matched: true, CostReal: 100, CostAdjusted: 100, ProfitReal: 100, ProfitAdjusted: 100, MatchedBrand: "Acme", MatchedRule: "promo only"},
			},
		},
		{
			name: "kickback inferred from the discount table",
			rules: map[string][]domain.DealRule{
				"Acme": {{Name: "quarter off", Brands: []string{"Acme"}, Discount: 0.25}},
			},
			store: "MV",
			rows:  []domain.TransactionRow{row("Acme | Gummies")},
			want: []domain.DealMatch{
				{Matched: true, KickbackFraction: 0.125, CostReal: 100, CostAdjusted: 87.5, ProfitReal: 100, ProfitAdjusted: 112.5, MatchedBrand: "Acme", MatchedRule: "quarter off"},
			},
		},
		{
			name: "substring fallback only when no exact match exists",
			rules: map[string][]domain.DealRule{
				"Acme": {{Name: "r", Brands: []string{"acme"}, Kickback: domain.Float64(0.10)}},
			},
			store: "MV",
			rows:  []domain.TransactionRow{row("Blue Dream by ACME"), row("Other | Gummies")},
			want: []domain.DealMatch{
				{Matched: true, KickbackFraction: 0.10, CostReal: 100, CostAdjusted: 90, ProfitReal: 100, ProfitAdjusted: 110, MatchedBrand: "Acme", MatchedRule: "r"},
				{CostReal: 100, CostAdjusted: 100, ProfitReal: 100, ProfitAdjusted: 100},
			},
		},
		{
			name: "exact match suppresses the substring fallback",
			rules: map[string][]domain.DealRule{
				"Acme": {{Name: "r", Brands: []string{"Acme"}, Kickback: domain.Float64(0.10)}},
			},
			store: "MV",
			rows:  []domain.TransactionRow{row("Acme | Gummies"), row("Gummies by Acme")},
			want: []domain.DealMatch{
				{Matched: true, KickbackFraction: 0.10, CostReal: 100, CostAdjusted: 90, ProfitReal: 100, ProfitAdjusted: 110, MatchedBrand: "Acme", MatchedRule: "r"},
				{CostReal: 100, CostAdjusted: 100, ProfitReal: 100, ProfitAdjusted: 100},
			},
		},
		{
			name: "store outside the allow-list",
			rules: map[string][]domain.DealRule{
				"Acme": {{Name: "r", Stores: []string{"LM"}, Brands: []string{"Acme"}, Kickback: domain.Float64(0.10)}},
			},
			store: "MV",
			rows:  []domain.TransactionRow{row("Acme | Gummies")},
			want:  []domain.DealMatch{{CostReal: 100, CostAdjusted: 100, ProfitReal: 100, ProfitAdjusted: 100}},
		},
		{
			name: "rule without stores defaults to known stores",
			rules: map[string][]domain.DealRule{
				"Acme": {{Name: "r", Brands: []string{"Acme"}, Kickback: domain.Float64(0.10)}},
			},
			knownStores: []string{"MV", "LM"},
			store:       "WH",
			rows:        []domain.TransactionRow{row("Acme | Gummies")},
			want:        []domain.DealMatch{{CostReal: 100, CostAdjusted: 100, ProfitReal: 100, ProfitAdjusted: 100}},
		},
		{
			name: "weekday, category and phrase filters",
			rules: map[string][]domain.DealRule{
				"Acme": {
					{Name: "tuesday", Days: []string{"Tuesday"}, Brands: []string{"Acme"}, Kickback: domain.Float64(0.50)},
					{Name: "flower", Categories: []string{"flower"}, Brands: []string{"Acme"}, Kickback: domain.Float64(0.40)},
					{Name: "no gummies", ExcludedPhrases: []string{"GUMMIES"}, Brands: []string{"Acme"}, Kickback: domain.Float64(0.30)},
					{Name: "vapes", IncludePhrases: []string{"cart"}, Brands: []string{"Acme"}, Kickback: domain.Float64(0.20)},
					{Name: "monday edibles", Days: []string{"mon"}, Categories: []string{"EDIBLES"}, Brands: []string{"Acme"}, Kickback: domain.Float64(0.05)},
				},
			},
			store: "MV",
			rows:  []domain.TransactionRow{row("Acme | Gummies")},
			want: []domain.DealMatch{
				{Matched: true, KickbackFraction: 0.05, CostReal: 100, CostAdjusted: 95, ProfitReal: 100, ProfitAdjusted: 105, MatchedBrand: "Acme", MatchedRule: "monday edibles"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := usecase.NewDealRuleEngine(domain.RuleSet{Brands: tt.rules}, tt.knownStores)

			got := engine.Apply(tt.rows, tt.store)

			require.Len(t, got, len(tt.rows))
			for i := range got {
				assert.Equal(t, tt.rows[i], got[i].TransactionRow)
				assert.Equal(t, tt.want[i].Matched, got[i].Deal.Matched)
				assert.Equal(t, tt.want[i].MatchedRule, got[i].Deal.MatchedRule)
				assert.Equal(t, tt.want[i].MatchedBrand, got[i].Deal.MatchedBrand)
				assert.InDelta(t, tt.want[i].KickbackFraction, got[i].Deal.KickbackFraction, 1e-12)
				assert.InDelta(t, tt.want[i].CostAdjusted, got[i].Deal.CostAdjusted, 1e-9)
				assert.InDelta(t, tt.want[i].ProfitAdjusted, got[i].Deal.ProfitAdjusted, 1e-9)
				assert.InDelta(t, tt.want[i].CostReal, got[i].Deal.CostReal, 1e-9)
				assert.InDelta(t, tt.want[i].ProfitReal, got[i].Deal.ProfitReal, 1e-9)
			}
		})
	}
}

func TestDealRuleEngine_ReportedProfitIsUsed(t *testing.T) {
	engine := usecase.NewDealRuleEngine(domain.RuleSet{
		Brands:        map[string][]domain.DealRule{"Acme": {{Name: "r", Brands: []string{"Acme"}, Discount: 0.20}}},
		KickbackTable: map[float64]float64{0.20: 0.5},
	}, nil)

	got := engine.Apply([]domain.TransactionRow{
		{Date: monday, ProductName: "Acme | Gummies", NetSales: 200, Cost: 100, Profit: domain.Float64(90)},
	}, "MV")

	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].Deal.KickbackFraction, 1e-12)
	assert.InDelta(t, 90, got[0].Deal.ProfitReal, 1e-9)
	assert.InDelta(t, 140, got[0].Deal.ProfitAdjusted, 1e-9)
	assert.InDelta(t, 50, got[0].Deal.CostAdjusted, 1e-9)
}

func TestDealRuleEngine_NoRules(t *testing.T) {
	engine := usecase.NewDealRuleEngine(domain.RuleSet{}, []string{"MV"})

	got := engine.Apply([]domain.TransactionRow{{Date: monday, ProductName: "Acme", NetSales: 10, Cost: 4}}, "MV")

	require.Len(t, got, 1)
	assert.False(t, got[0].Deal.Matched)
	assert.InDelta(t, 6, got[0].Deal.ProfitAdjusted, 1e-9)
	assert.Empty(t, engine.Apply(nil, "MV"))
}
