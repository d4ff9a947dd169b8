package domain

import "time"

// TransactionRow represents one sale line from a point-of-sale export.
type TransactionRow struct {
	Date            time.Time  `json:"date"`
	OrderID         string     `json:"order_id"`
	ProductName     string     `json:"product_name"`
	Category        string     `json:"category"`
	NetSales        float64    `json:"net_sales"`
	GrossSales      float64    `json:"gross_sales"`
	Quantity        float64    `json:"quantity"`
	Discount        float64    `json:"discount"`
	LoyaltyDiscount float64    `json:"loyalty_discount"`
	Cost            float64    `json:"cost"`
	Profit          *float64   `json:"profit,omitempty"` // Absent in some exports
	ReturnDate      *time.Time `json:"return_date,omitempty"`
	WeightSold      float64    `json:"weight_sold"`
}

// DealMatch is the outcome of resolving deal rules against a single row.
type DealMatch struct {
	Matched          bool    `json:"matched"`
	KickbackFraction float64 `json:"kickback_fraction"`
	CostReal         float64 `json:"cost_real"`
	CostAdjusted     float64 `json:"cost_adjusted"`
	ProfitReal       float64 `json:"profit_real"`
	ProfitAdjusted   float64 `json:"profit_adjusted"`
	MatchedBrand     string  `json:"matched_brand,omitempty"`
	MatchedRule      string  `json:"matched_rule,omitempty"`
}

// EnrichedRow pairs a transaction with its resolved deal match.
type EnrichedRow struct {
	TransactionRow
	Deal DealMatch `json:"deal"`
}
