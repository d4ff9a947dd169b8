package domain

import "time"

// AllStoresCode is the synthetic store code holding the per-date sum of all stores.
const AllStoresCode = "ALL"

// DailyMetricRecord is the canonical financial record for one store on one date.
// Grain: (store_code, date).
type DailyMetricRecord struct {
	StoreCode string    `gorm:"column:store_code;primaryKey;type:varchar(32)" json:"store_code"`
	Date      time.Time `gorm:"column:date;primaryKey;type:date" json:"date"`

	NetRevenue      float64 `gorm:"column:net_revenue" json:"net_revenue"`
	GrossSales      float64 `gorm:"column:gross_sales" json:"gross_sales"`
	Tickets         float64 `gorm:"column:tickets" json:"tickets"`
	Items           float64 `gorm:"column:items" json:"items"`
	Discount        float64 `gorm:"column:discount" json:"discount"`
	LoyaltyDiscount float64 `gorm:"column:loyalty_discount" json:"loyalty_discount"`
	CostReal        float64 `gorm:"column:cost_real" json:"cost_real"`
	ProfitReal      float64 `gorm:"column:profit_real" json:"profit_real"`
	Cost            float64 `gorm:"column:cost" json:"cost"`     // Kickback-adjusted
	Profit          float64 `gorm:"column:profit" json:"profit"` // Kickback-adjusted
	ReturnsNet      float64 `gorm:"column:returns_net" json:"returns_net"`
	ReturnsTickets  float64 `gorm:"column:returns_tickets" json:"returns_tickets"`
	WeightSold      float64 `gorm:"column:weight_sold" json:"weight_sold"`

	// Derived from the sums above, see Recompute.
	Basket         float64 `gorm:"column:basket" json:"basket"`
	ItemsPerTicket float64 `gorm:"column:items_per_ticket" json:"items_per_ticket"`
	Margin         float64 `gorm:"column:margin" json:"margin"`
	MarginReal     float64 `gorm:"column:margin_real" json:"margin_real"`
	DiscountRate   float64 `gorm:"column:discount_rate" json:"discount_rate"`
}

// TableName specifies the table name for DailyMetricRecord.
func (DailyMetricRecord) TableName() string {
	return "daily_metrics"
}

// RecordKey identifies a history row.
type RecordKey struct {
	StoreCode string
	Date      string // 2006-01-02
}

// Key returns the (store_code, date) key of the record.
func (r DailyMetricRecord) Key() RecordKey {
	return RecordKey{StoreCode: r.StoreCode, Date: r.Date.Format(time.DateOnly)}
}

// DiscountTotal is the main discount plus the loyalty discount.
func (r DailyMetricRecord) DiscountTotal() float64 {
	return r.Discount + r.LoyaltyDiscount
}

// Add accumulates the summable fields of other into r. Ratios are not touched.
func (r *DailyMetricRecord) Add(other DailyMetricRecord) {
	r.NetRevenue += other.NetRevenue
	r.GrossSales += other.GrossSales
	r.Tickets += other.Tickets
	r.Items += other.Items
	r.Discount += other.Discount
	r.LoyaltyDiscount += other.LoyaltyDiscount
	r.CostReal += other.CostReal
	r.ProfitReal += other.ProfitReal
	r.Cost += other.Cost
	r.Profit += other.Profit
	r.ReturnsNet += other.ReturnsNet
	r.ReturnsTickets += other.ReturnsTickets
	r.WeightSold += other.WeightSold
}

// Recompute derives every ratio from the record's sums.
func (r *DailyMetricRecord) Recompute() {
	r.Basket = SafeDiv(r.NetRevenue, r.Tickets)
	r.ItemsPerTicket = SafeDiv(r.Items, r.Tickets)
	r.Margin = SafeDiv(r.Profit, r.NetRevenue)
	r.MarginReal = SafeDiv(r.ProfitReal, r.NetRevenue)
	r.DiscountRate = DiscountRate(r.DiscountTotal(), r.GrossSales, r.NetRevenue)
}

// DiscountRate is discount/gross, or discount/(net+discount) when gross is unknown.
func DiscountRate(discount, gross, net float64) float64 {
	if gross > 0 {
		return discount / gross
	}
	return SafeDiv(discount, net+discount)
}

// SafeDiv returns num/den, or 0 when den is 0.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the month containing t.
func DaysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
