package usecase

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/logger"
)

// AggregateStats describes one aggregation pass.
type AggregateStats struct {
	Rows int `json:"rows"`
	Days int `json:"days"`
	// TicketsEstimated is set when order ids were unavailable and tickets were counted per row,
	// which overstates the ticket count.
	TicketsEstimated bool `json:"tickets_estimated"`
}

// dayAccumulator holds one calendar day's running sums.
type dayAccumulator struct {
	net, gross, items, discount, loyalty decimal.Decimal
	costReal, profitReal, cost, profit   decimal.Decimal
	returnsNet, weight                   decimal.Decimal
	orders, returnOrders                 map[string]struct{}
	rows, returnRows                     int
}

func newDayAccumulator() *dayAccumulator {
	return &dayAccumulator{
		orders:       make(map[string]struct{}),
		returnOrders: make(map[string]struct{}),
	}
}

// AggregateDaily reduces one store's enriched rows to one record per calendar date, sorted by date.
func AggregateDaily(storeCode string, rows []domain.EnrichedRow) ([]domain.DailyMetricRecord, AggregateStats) {
	stats := AggregateStats{Rows: len(rows)}
	if len(rows) == 0 {
		return nil, stats
	}

	hasOrderIDs := false
	for _, row := range rows {
		if strings.TrimSpace(row.OrderID) != "" {
			hasOrderIDs = true
			break
		}
	}
	if !hasOrderIDs {
		stats.TicketsEstimated = true
		logger.Warn("order ids unavailable, counting one ticket per row; ticket counts are inflated",
			zap.String("store", storeCode), zap.Int("rows", len(rows)))
	}

	days := make(map[time.Time]*dayAccumulator)
	for _, row := range rows {
		day := domain.DateOnly(row.Date)
		acc, ok := days[day]
		if !ok {
			acc = newDayAccumulator()
			days[day] = acc
		}

		acc.rows++
		acc.net = acc.net.Add(decimal.NewFromFloat(row.NetSales))
		acc.gross = acc.gross.Add(decimal.NewFromFloat(row.GrossSales))
		acc.items = acc.items.Add(decimal.NewFromFloat(row.Quantity))
		acc.discount = acc.discount.Add(decimal.NewFromFloat(row.Discount))
		acc.loyalty = acc.loyalty.Add(decimal.NewFromFloat(row.LoyaltyDiscount))
		acc.costReal = acc.costReal.Add(decimal.NewFromFloat(row.Deal.CostReal))
		acc.profitReal = acc.profitReal.Add(decimal.NewFromFloat(row.Deal.ProfitReal))
		acc.cost = acc.cost.Add(decimal.NewFromFloat(row.Deal.CostAdjusted))
		acc.profit = acc.profit.Add(decimal.NewFromFloat(row.Deal.ProfitAdjusted))
		acc.weight = acc.weight.Add(decimal.NewFromFloat(row.WeightSold))

		orderID := strings.TrimSpace(row.OrderID)
		if orderID != "" {
			acc.orders[orderID] = struct{}{}
		}
		if row.ReturnDate != nil {
			acc.returnRows++
			acc.returnsNet = acc.returnsNet.Add(decimal.NewFromFloat(row.NetSales))
			if orderID != "" {
				acc.returnOrders[orderID] = struct{}{}
			}
		}
	}

	records := make([]domain.DailyMetricRecord, 0, len(days))
	for day, acc := range days {
		tickets, returnTickets := float64(len(acc.orders)), float64(len(acc.returnOrders))
		if !hasOrderIDs {
			tickets, returnTickets = float64(acc.rows), float64(acc.returnRows)
		}

		rec := domain.DailyMetricRecord{
			StoreCode:       storeCode,
			Date:            day,
			NetRevenue:      acc.net.InexactFloat64(),
			GrossSales:      acc.gross.InexactFloat64(),
			Tickets:         tickets,
			Items:           acc.items.InexactFloat64(),
			Discount:        acc.discount.InexactFloat64(),
			LoyaltyDiscount: acc.loyalty.InexactFloat64(),
			CostReal:        acc.costReal.InexactFloat64(),
			ProfitReal:      acc.profitReal.InexactFloat64(),
			Cost:            acc.cost.InexactFloat64(),
			Profit:          acc.profit.InexactFloat64(),
			ReturnsNet:      acc.returnsNet.Abs().InexactFloat64(),
			ReturnsTickets:  returnTickets,
			WeightSold:      acc.weight.InexactFloat64(),
		}
		rec.Recompute()
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	stats.Days = len(records)
	return records, stats
}
