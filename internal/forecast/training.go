package forecast

import (
	"time"

	"go.uber.org/zap"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/logger"
)

// Forecast targets, in the order models are fitted.
const (
	TargetNet      = "net"
	TargetProfit   = "profit"
	TargetTickets  = "tickets"
	TargetDiscount = "discount"
)

// Targets lists every point-model target.
var Targets = []string{TargetNet, TargetProfit, TargetTickets, TargetDiscount}

const (
	DefaultCoverage   = 0.90
	DefaultMinAsOfDay = 4
)

// TrainingSet is the supervised data mined from complete months.
type TrainingSet struct {
	Features []FeatureSnapshot
	Targets  map[string][]float64
	// CompleteMonths counts distinct calendar months complete for at least one store.
	CompleteMonths int
	Samples        int
}

// TrainingSetBuilder mines samples from (store, month) groups with enough coverage.
type TrainingSetBuilder struct {
	Features   FeatureBuilder
	Coverage   float64
	MinAsOfDay int
}

// NewTrainingSetBuilder applies defaults to zero-valued thresholds.
func NewTrainingSetBuilder(features FeatureBuilder, coverage float64, minAsOfDay int) TrainingSetBuilder {
	if coverage <= 0 {
		coverage = DefaultCoverage
	}
	if minAsOfDay <= 0 {
		minAsOfDay = DefaultMinAsOfDay
	}
	return TrainingSetBuilder{Features: features, Coverage: coverage, MinAsOfDay: minAsOfDay}
}

type monthKey struct {
	year  int
	month time.Month
}

// Build walks every store's complete months. A month still in progress relative to the
// latest history date never contributes.
func (b TrainingSetBuilder) Build(h *History) TrainingSet {
	set := TrainingSet{Targets: make(map[string][]float64, len(Targets))}
	latest, ok := h.Latest()
	if !ok {
		return set
	}

	months := make(map[monthKey]bool)
	for _, store := range h.Stores() {
		byMonth := make(map[monthKey][]time.Time)
		var order []monthKey
		for _, d := range h.Days(store) {
			k := monthKey{d.Year(), d.Month()}
			if _, seen := byMonth[k]; !seen {
				order = append(order, k)
			}
			byMonth[k] = append(byMonth[k], d)
		}

		for _, k := range order {
			days := byMonth[k]
			start := time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC)
			dim := domain.DaysIn(start)
			end := start.AddDate(0, 0, dim-1)
			if end.After(latest) {
				continue
			}
			if float64(len(days))/float64(dim) < b.Coverage {
				logger.Debug("skipping incomplete month",
					zap.String("store", store), zap.String("month", start.Format("2006-01")),
					zap.Int("days", len(days)), zap.Int("days_in_month", dim))
				continue
			}

			total, _ := h.sumRange(store, start, end)
			months[k] = true
			for _, d := range days {
				if d.Day() < b.MinAsOfDay || d.Day() == dim {
					continue
				}
				set.Features = append(set.Features, b.Features.Build(h, store, d))
				set.Targets[TargetNet] = append(set.Targets[TargetNet], total.NetRevenue)
				set.Targets[TargetProfit] = append(set.Targets[TargetProfit], total.Profit)
				set.Targets[TargetTickets] = append(set.Targets[TargetTickets], total.Tickets)
				set.Targets[TargetDiscount] = append(set.Targets[TargetDiscount], total.DiscountTotal())
				set.Samples++
			}
		}
	}
	set.CompleteMonths = len(months)
	return set
}
