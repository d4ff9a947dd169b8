package usecase_test

import (
	"testing"
	"time"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrich(rows ...domain.TransactionRow) []domain.EnrichedRow {
	return usecase.NewDealRuleEngine(domain.RuleSet{}, nil).Apply(rows, "MV")
}

func TestAggregateDaily(t *testing.T) {
	day1 := time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 9, 1, 18, 45, 0, 0, time.UTC)
	returned := time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)

	rows := enrich(
		domain.TransactionRow{Date: day1, OrderID: "A", NetSales: 100, GrossSales: 120, Quantity: 2, Discount: 15, LoyaltyDiscount: 5, Cost: 40, WeightSold: 3.5},
		domain.TransactionRow{Date: day1.Add(time.Hour), OrderID: "A", NetSales: 50, GrossSales: 50, Quantity: 1, Cost: 20},
		domain.TransactionRow{Date: day1.Add(2 * time.Hour), OrderID: "B", NetSales: -30, GrossSales: 30, Quantity: 1, Cost: 10, ReturnDate: &returned},
		domain.TransactionRow{Date: day2, OrderID: "C", NetSales: 80, GrossSales: 100, Quantity: 4, Discount: 20, Cost: 30},
	)

	got, stats := usecase.AggregateDaily("MV", rows)

	assert.Equal(t, usecase.AggregateStats{Rows: 4, Days: 2}, stats)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "2025-09-01", first.Date.Format(time.DateOnly), "sorted by date")
	assert.Equal(t, 1.0, first.Tickets)
	assert.InDelta(t, 0.2, first.DiscountRate, 1e-12)

	second := got[1]
	assert.Equal(t, "MV", second.StoreCode)
	assert.Equal(t, time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), second.Date)
	assert.InDelta(t, 120, second.NetRevenue, 1e-9)
	assert.InDelta(t, 200, second.GrossSales, 1e-9)
	assert.Equal(t, 2.0, second.Tickets, "distinct order ids")
	assert.InDelta(t, 4, second.Items, 1e-9)
	assert.InDelta(t, 70, second.CostReal, 1e-9)
	assert.InDelta(t, 50, second.ProfitReal, 1e-9)
	assert.InDelta(t, 50, second.Profit, 1e-9)
	assert.InDelta(t, 30, second.ReturnsNet, 1e-9)
	assert.Equal(t, 1.0, second.ReturnsTickets)
	assert.InDelta(t, 3.5, second.WeightSold, 1e-9)
	assert.InDelta(t, 60, second.Basket, 1e-9)
	assert.InDelta(t, 2, second.ItemsPerTicket, 1e-9)
	assert.InDelta(t, 50.0/120, second.Margin, 1e-12)
	assert.InDelta(t, 20.0/200, second.DiscountRate, 1e-12)
}

func TestAggregateDaily_WithoutOrderIDs(t *testing.T) {
	day := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	rows := enrich(
		domain.TransactionRow{Date: day, NetSales: 10, Cost: 5},
		domain.TransactionRow{Date: day, NetSales: 20, Cost: 5},
		domain.TransactionRow{Date: day, NetSales: 30, Cost: 5},
	)

	got, stats := usecase.AggregateDaily("MV", rows)

	assert.True(t, stats.TicketsEstimated)
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Tickets)
	assert.InDelta(t, 20, got[0].Basket, 1e-9)
}

func TestAggregateDaily_Empty(t *testing.T) {
	got, stats := usecase.AggregateDaily("MV", nil)
	assert.Nil(t, got)
	assert.Equal(t, usecase.AggregateStats{}, stats)
}

func TestDiscountRate(t *testing.T) {
	tests := []struct {
		name                 string
		discount, gross, net float64
		want                 float64
	}{
		{name: "gross known", discount: 20, gross: 200, net: 180, want: 0.1},
		{name: "gross missing", discount: 20, gross: 0, net: 180, want: 0.1},
		{name: "nothing sold", discount: 0, gross: 0, net: 0, want: 0},
		{name: "cancelling denominator", discount: 10, gross: 0, net: -10, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, domain.DiscountRate(tt.discount, tt.gross, tt.net), 1e-12)
		})
	}
}
