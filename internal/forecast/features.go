package forecast

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"retail-forecaster/internal/domain"
)

// DefaultSeasonalWindowDays is the trailing window of the weekday profile.
const DefaultSeasonalWindowDays = 56

// WeekdayMean is the average daily performance of one weekday over the seasonal window.
type WeekdayMean struct {
	Net      float64 `json:"net"`
	Profit   float64 `json:"profit"`
	Tickets  float64 `json:"tickets"`
	Discount float64 `json:"discount"`
	Count    int     `json:"count"`
}

// WeekdayProfile is indexed by time.Weekday (Sunday = 0).
type WeekdayProfile [7]WeekdayMean

// PriorMonth holds the previous calendar month's totals.
type PriorMonth struct {
	Net     float64 `json:"net"`
	Profit  float64 `json:"profit"`
	Tickets float64 `json:"tickets"`
}

// FeatureSnapshot is everything known about a store as of the end of one day.
type FeatureSnapshot struct {
	StoreCode string    `json:"store_code"`
	AsOf      time.Time `json:"as_of"`

	// Calendar
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	Weekday         int     `json:"weekday"`
	DayOfMonth      int     `json:"day_of_month"`
	DaysInMonth     int     `json:"days_in_month"`
	FractionElapsed float64 `json:"fraction_elapsed"`
	RemainingDays   int     `json:"remaining_days"`

	// Month to date, 1st through AsOf inclusive
	MTD             domain.Totals `json:"mtd"`
	MTDGross        float64       `json:"mtd_gross"`
	MTDMargin       float64       `json:"mtd_margin"`
	MTDBasket       float64       `json:"mtd_basket"`
	MTDDiscountRate float64       `json:"mtd_discount_rate"`
	MTDDays         int           `json:"mtd_days"`

	// Trailing windows ending at AsOf
	Trailing7   domain.Totals `json:"trailing_7"`
	Trailing14  domain.Totals `json:"trailing_14"`
	TrendSlope7 float64       `json:"trend_slope_7"`

	Profile     WeekdayProfile `json:"profile"`
	ProfileDays int            `json:"profile_days"`
	// RemainingWeekdays counts each weekday strictly after AsOf in the month.
	RemainingWeekdays [7]int `json:"remaining_weekdays"`

	Prior PriorMonth `json:"prior"`
}

// FeatureBuilder computes as-of snapshots. It never reads history after the as-of date.
type FeatureBuilder struct {
	WindowDays int
}

// NewFeatureBuilder creates a builder; windowDays <= 0 selects DefaultSeasonalWindowDays.
func NewFeatureBuilder(windowDays int) FeatureBuilder {
	if windowDays <= 0 {
		windowDays = DefaultSeasonalWindowDays
	}
	return FeatureBuilder{WindowDays: windowDays}
}

// Build returns the snapshot of store as of asOf. Missing history yields zero-valued features.
func (b FeatureBuilder) Build(h *History, store string, asOf time.Time) FeatureSnapshot {
	asOf = domain.DateOnly(asOf)
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	dim := domain.DaysIn(asOf)

	s := FeatureSnapshot{
		StoreCode:       store,
		AsOf:            asOf,
		Year:            asOf.Year(),
		Month:           int(asOf.Month()),
		Weekday:         int(asOf.Weekday()),
		DayOfMonth:      asOf.Day(),
		DaysInMonth:     dim,
		FractionElapsed: float64(asOf.Day()) / float64(dim),
		RemainingDays:   dim - asOf.Day(),
	}

	mtd, mtdDays := h.sumRange(store, monthStart, asOf)
	s.MTD = totalsOf(mtd)
	s.MTDGross = mtd.GrossSales
	s.MTDMargin = domain.SafeDiv(mtd.Profit, mtd.NetRevenue)
	s.MTDBasket = domain.SafeDiv(mtd.NetRevenue, mtd.Tickets)
	s.MTDDiscountRate = domain.DiscountRate(mtd.DiscountTotal(), mtd.GrossSales, mtd.NetRevenue)
	s.MTDDays = mtdDays

	t7, _ := h.sumRange(store, asOf.AddDate(0, 0, -6), asOf)
	t14, _ := h.sumRange(store, asOf.AddDate(0, 0, -13), asOf)
	s.Trailing7 = totalsOf(t7)
	s.Trailing14 = totalsOf(t14)
	s.TrendSlope7 = b.trendSlope(h, store, asOf)

	s.Profile, s.ProfileDays = b.weekdayProfile(h, store, asOf)

	for d := asOf.AddDate(0, 0, 1); d.Month() == asOf.Month(); d = d.AddDate(0, 0, 1) {
		s.RemainingWeekdays[d.Weekday()]++
	}

	priorEnd := monthStart.AddDate(0, 0, -1)
	priorStart := time.Date(priorEnd.Year(), priorEnd.Month(), 1, 0, 0, 0, 0, time.UTC)
	prior, _ := h.sumRange(store, priorStart, priorEnd)
	s.Prior = PriorMonth{Net: prior.NetRevenue, Profit: prior.Profit, Tickets: prior.Tickets}

	return s
}

// trendSlope is the OLS slope of daily net over the trailing 7 days, 0 with fewer than 2 points.
func (b FeatureBuilder) trendSlope(h *History, store string, asOf time.Time) float64 {
	xs := make([]float64, 0, 7)
	ys := make([]float64, 0, 7)
	for i := 6; i >= 0; i-- {
		if rec, ok := h.Get(store, asOf.AddDate(0, 0, -i)); ok {
			xs = append(xs, float64(6-i))
			ys = append(ys, rec.NetRevenue)
		}
	}
	if len(xs) < 2 {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}

func (b FeatureBuilder) weekdayProfile(h *History, store string, asOf time.Time) (WeekdayProfile, int) {
	var profile WeekdayProfile
	days := 0
	for i := 0; i < b.WindowDays; i++ {
		d := asOf.AddDate(0, 0, -i)
		rec, ok := h.Get(store, d)
		if !ok {
			continue
		}
		wd := &profile[d.Weekday()]
		wd.Net += rec.NetRevenue
		wd.Profit += rec.Profit
		wd.Tickets += rec.Tickets
		wd.Discount += rec.DiscountTotal()
		wd.Count++
		days++
	}
	for i := range profile {
		if n := float64(profile[i].Count); n > 0 {
			profile[i].Net /= n
			profile[i].Profit /= n
			profile[i].Tickets /= n
			profile[i].Discount /= n
		}
	}
	return profile, days
}

func totalsOf(r domain.DailyMetricRecord) domain.Totals {
	return domain.Totals{
		Net:      r.NetRevenue,
		Profit:   r.Profit,
		Tickets:  r.Tickets,
		Discount: r.DiscountTotal(),
	}
}

// FeatureNames lists the numeric features in the order Numeric returns them.
func FeatureNames() []string {
	names := []string{
		"year", "month", "weekday", "day_of_month", "days_in_month", "fraction_elapsed", "remaining_days",
		"mtd_net", "mtd_profit", "mtd_tickets", "mtd_discount", "mtd_gross", "mtd_margin", "mtd_basket", "mtd_discount_rate",
		"t7_net", "t7_profit", "t7_tickets", "t7_discount",
		"t14_net", "t14_profit", "t14_tickets", "t14_discount",
		"trend_slope_7",
	}
	for wd := 0; wd < 7; wd++ {
		names = append(names, fmt.Sprintf("wd%d_mean_net", wd))
	}
	for wd := 0; wd < 7; wd++ {
		names = append(names, fmt.Sprintf("wd%d_mean_profit", wd))
	}
	for wd := 0; wd < 7; wd++ {
		names = append(names, fmt.Sprintf("wd%d_remaining", wd))
	}
	return append(names, "prior_net", "prior_profit", "prior_tickets")
}

// Numeric returns the numeric feature vector, aligned with FeatureNames.
func (s FeatureSnapshot) Numeric() []float64 {
	v := []float64{
		float64(s.Year), float64(s.Month), float64(s.Weekday), float64(s.DayOfMonth),
		float64(s.DaysInMonth), s.FractionElapsed, float64(s.RemainingDays),
		s.MTD.Net, s.MTD.Profit, s.MTD.Tickets, s.MTD.Discount, s.MTDGross, s.MTDMargin, s.MTDBasket, s.MTDDiscountRate,
		s.Trailing7.Net, s.Trailing7.Profit, s.Trailing7.Tickets, s.Trailing7.Discount,
		s.Trailing14.Net, s.Trailing14.Profit, s.Trailing14.Tickets, s.Trailing14.Discount,
		s.TrendSlope7,
	}
	for wd := 0; wd < 7; wd++ {
		v = append(v, s.Profile[wd].Net)
	}
	for wd := 0; wd < 7; wd++ {
		v = append(v, s.Profile[wd].Profit)
	}
	for wd := 0; wd < 7; wd++ {
		v = append(v, float64(s.RemainingWeekdays[wd]))
	}
	return append(v, s.Prior.Net, s.Prior.Profit, s.Prior.Tickets)
}

// HasHistory reports whether any history at all contributed to the snapshot.
func (s FeatureSnapshot) HasHistory() bool {
	return s.MTDDays > 0 || s.ProfileDays > 0 || s.Prior != (PriorMonth{})
}
