package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/logger"
)

// MLModelName identifies the ridge model family in results.
const MLModelName = "ridge_linear"

// State is the lifecycle of an MLForecaster within one run.
type State int

const (
	StateUntrained State = iota
	StateBaseline
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateBaseline:
		return "BASELINE"
	case StateTrained:
		return "TRAINED"
	default:
		return "UNTRAINED"
	}
}

// quantileTargets get P10/P90 band models.
var quantileTargets = []string{TargetNet, TargetProfit}

type (
	pointFitter    func(x *mat.Dense, y []float64, lambda float64) (*LinearModel, error)
	quantileFitter func(x *mat.Dense, y []float64, tau, lambda float64) (*LinearModel, error)
)

// MLForecaster fits one ridge model per target and falls back to the baseline whenever
// history is insufficient or training fails.
type MLForecaster struct {
	opts     Options
	repo     ModelRepository
	features FeatureBuilder
	training TrainingSetBuilder
	baseline *BaselineForecaster

	fitPoint    pointFitter
	fitQuantile quantileFitter

	state  State
	bundle *Bundle
	meta   domain.ModelMeta
}

// NewMLForecaster creates an untrained forecaster. repo may be nil.
func NewMLForecaster(opts Options, repo ModelRepository) *MLForecaster {
	opts = opts.withDefaults()
	features := NewFeatureBuilder(opts.SeasonalWindowDays)
	return &MLForecaster{
		opts:     opts,
		repo:     repo,
		features: features,
		training: NewTrainingSetBuilder(features, opts.Coverage, opts.MinAsOfDay),
		baseline: NewBaselineForecaster(opts),

		fitPoint:    FitRidge,
		fitQuantile: FitQuantile,

		state: StateUntrained,
	}
}

// Name returns the model family currently answering predictions.
func (f *MLForecaster) Name() string {
	if f.state == StateTrained {
		return MLModelName
	}
	return BaselineModelName
}

// State returns the current lifecycle state.
func (f *MLForecaster) State() State {
	return f.state
}

// Train mines the history, then reuses or fits a model. It never fails: every problem ends
// in the BASELINE state.
func (f *MLForecaster) Train(ctx context.Context, h *History) domain.ModelMeta {
	set := f.training.Build(h)
	f.meta = domain.ModelMeta{
		ModelName:      BaselineModelName,
		Samples:        set.Samples,
		CompleteMonths: set.CompleteMonths,
	}
	f.baseline.meta = f.meta
	f.bundle = nil

	if set.CompleteMonths < f.opts.MinCompleteMonths || set.Samples < 1 {
		logger.Info("insufficient history for model training, using baseline",
			zap.Int("complete_months", set.CompleteMonths),
			zap.Int("min_complete_months", f.opts.MinCompleteMonths),
			zap.Int("samples", set.Samples))
		f.state = StateBaseline
		return f.meta
	}

	if !f.opts.RetrainEveryRun && f.repo != nil {
		if bundle, ok := f.loadBundle(ctx); ok {
			f.bundle = bundle
			f.meta = bundle.Meta
			f.state = StateTrained
			logger.Info("reusing persisted model", zap.Timep("trained_at", bundle.Meta.TrainedAt))
			return f.meta
		}
	}

	bundle, err := f.fit(set)
	if err != nil {
		logger.Error("model training failed, using baseline", zap.Error(err))
		f.state = StateBaseline
		return f.meta
	}
	f.bundle = bundle
	f.meta = bundle.Meta
	f.state = StateTrained
	logger.Info("model trained",
		zap.String("model", MLModelName),
		zap.Int("samples", set.Samples),
		zap.Int("complete_months", set.CompleteMonths),
		zap.Int("quantile_models", len(bundle.Quantiles)))

	if f.repo != nil {
		if err := f.repo.SaveBundle(ctx, bundle); err != nil {
			logger.Error("failed to persist model",
				zap.Error(&domain.PersistenceError{Op: "save", Resource: "model", Cause: err}))
		}
	}
	return f.meta
}

func (f *MLForecaster) loadBundle(ctx context.Context) (*Bundle, bool) {
	bundle, err := f.repo.LoadBundle(ctx)
	switch {
	case errors.Is(err, ErrNoModel):
		return nil, false
	case err != nil:
		logger.Debug("persisted model unreadable, retraining", zap.Error(err))
		return nil, false
	case !bundle.Compatible():
		logger.Debug("persisted model schema mismatch, retraining")
		return nil, false
	}
	return bundle, true
}

// fit trains every model. Panics from the numeric backend surface as ModelTrainingError.
func (f *MLForecaster) fit(set TrainingSet) (bundle *Bundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			bundle = nil
			err = &domain.ModelTrainingError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	enc := FitEncoder(set.Features)
	x := enc.Matrix(set.Features)

	trainedAt := f.opts.Now().UTC()
	bundle = &Bundle{
		Meta: domain.ModelMeta{
			ModelName:      MLModelName,
			TrainedAt:      &trainedAt,
			Samples:        set.Samples,
			CompleteMonths: set.CompleteMonths,
		},
		FeatureNames: FeatureNames(),
		Encoder:      enc,
		Point:        make(map[string]*LinearModel, len(Targets)),
	}
	for _, target := range Targets {
		m, err := f.fitPoint(x, set.Targets[target], f.opts.Ridge)
		if err != nil {
			return nil, &domain.ModelTrainingError{Target: target, Cause: err}
		}
		bundle.Point[target] = m
	}

	if !f.opts.Quantiles {
		return bundle, nil
	}
	bundle.Quantiles = make(map[string]QuantilePair, len(quantileTargets))
	for _, target := range quantileTargets {
		p10, err10 := f.fitQuantile(x, set.Targets[target], 0.1, f.opts.Ridge)
		p90, err90 := f.fitQuantile(x, set.Targets[target], 0.9, f.opts.Ridge)
		if err := errors.Join(err10, err90); err != nil {
			logger.Warn("quantile model skipped", zap.String("target", target), zap.Error(err))
			continue
		}
		bundle.Quantiles[target] = QuantilePair{P10: p10, P90: p90}
	}
	return bundle, nil
}

// Predict uses the trained bundle, or the baseline when untrained or when the store has no
// history at all.
func (f *MLForecaster) Predict(h *History, store string, asOf time.Time) domain.ForecastResult {
	snap := f.features.Build(h, store, asOf)
	if f.state != StateTrained || f.bundle == nil || !snap.HasHistory() {
		return f.baseline.predictSnapshot(snap, f.baselineMeta())
	}

	x := f.bundle.Encoder.Transform(snap)
	point := domain.Totals{
		Net:      f.bundle.Point[TargetNet].Predict(x),
		Profit:   f.bundle.Point[TargetProfit].Predict(x),
		Tickets:  f.bundle.Point[TargetTickets].Predict(x),
		Discount: f.bundle.Point[TargetDiscount].Predict(x),
	}
	return finalize(snap, f.meta, point, f.band(TargetNet, x), f.band(TargetProfit, x))
}

func (f *MLForecaster) band(target string, x []float64) *domain.Band {
	pair, ok := f.bundle.Quantiles[target]
	if !ok {
		return nil
	}
	return &domain.Band{P10: pair.P10.Predict(x), P90: pair.P90.Predict(x)}
}

func (f *MLForecaster) baselineMeta() domain.ModelMeta {
	meta := f.meta
	meta.ModelName = BaselineModelName
	meta.TrainedAt = nil
	return meta
}
