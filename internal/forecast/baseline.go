package forecast

import (
	"context"
	"time"

	"retail-forecaster/internal/domain"
)

// BaselineModelName identifies the weekday-seasonal baseline in results.
const BaselineModelName = "baseline_weekday_seasonal"

// BaselineForecaster projects MTD forward with the trailing weekday profile.
type BaselineForecaster struct {
	features FeatureBuilder
	training TrainingSetBuilder
	meta     domain.ModelMeta
}

// NewBaselineForecaster creates a baseline forecaster.
func NewBaselineForecaster(opts Options) *BaselineForecaster {
	opts = opts.withDefaults()
	features := NewFeatureBuilder(opts.SeasonalWindowDays)
	return &BaselineForecaster{
		features: features,
		training: NewTrainingSetBuilder(features, opts.Coverage, opts.MinAsOfDay),
		meta:     domain.ModelMeta{ModelName: BaselineModelName},
	}
}

func (f *BaselineForecaster) Name() string {
	return BaselineModelName
}

// Train only records how much history there is; the baseline has no parameters.
func (f *BaselineForecaster) Train(ctx context.Context, h *History) domain.ModelMeta {
	set := f.training.Build(h)
	f.meta = domain.ModelMeta{
		ModelName:      BaselineModelName,
		Samples:        set.Samples,
		CompleteMonths: set.CompleteMonths,
	}
	return f.meta
}

func (f *BaselineForecaster) Predict(h *History, store string, asOf time.Time) domain.ForecastResult {
	snap := f.features.Build(h, store, asOf)
	return f.predictSnapshot(snap, f.meta)
}

func (f *BaselineForecaster) predictSnapshot(snap FeatureSnapshot, meta domain.ModelMeta) domain.ForecastResult {
	return finalize(snap, meta, baselineTotals(snap), nil, nil)
}

// baselineTotals is MTD plus the expected value of each remaining day. Weekdays never seen in
// the window use the window's overall daily mean; an empty window falls back to linear pace.
func baselineTotals(snap FeatureSnapshot) domain.Totals {
	if snap.ProfileDays == 0 {
		scale := domain.SafeDiv(float64(snap.DaysInMonth), float64(snap.DayOfMonth))
		return domain.Totals{
			Net:      snap.MTD.Net * scale,
			Profit:   snap.MTD.Profit * scale,
			Tickets:  snap.MTD.Tickets * scale,
			Discount: snap.MTD.Discount * scale,
		}
	}

	var overall domain.Totals
	for _, wd := range snap.Profile {
		n := float64(wd.Count)
		overall.Net += wd.Net * n
		overall.Profit += wd.Profit * n
		overall.Tickets += wd.Tickets * n
		overall.Discount += wd.Discount * n
	}
	days := float64(snap.ProfileDays)
	overall = domain.Totals{
		Net:      overall.Net / days,
		Profit:   overall.Profit / days,
		Tickets:  overall.Tickets / days,
		Discount: overall.Discount / days,
	}

	out := snap.MTD
	for wd, remaining := range snap.RemainingWeekdays {
		if remaining == 0 {
			continue
		}
		mean := overall
		if p := snap.Profile[wd]; p.Count > 0 {
			mean = domain.Totals{Net: p.Net, Profit: p.Profit, Tickets: p.Tickets, Discount: p.Discount}
		}
		n := float64(remaining)
		out.Net += mean.Net * n
		out.Profit += mean.Profit * n
		out.Tickets += mean.Tickets * n
		out.Discount += mean.Discount * n
	}
	return out
}
