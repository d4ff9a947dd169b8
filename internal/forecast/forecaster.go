package forecast

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/logger"
)

// Engines accepted by New.
const (
	EngineAuto     = "auto"
	EngineML       = "ml"
	EngineBaseline = "baseline"
)

// Forecaster trains once per run and then predicts month-end totals per store.
type Forecaster interface {
	Name() string
	Train(ctx context.Context, h *History) domain.ModelMeta
	Predict(h *History, store string, asOf time.Time) domain.ForecastResult
}

// Options configures both forecaster implementations.
type Options struct {
	Engine             string
	MinCompleteMonths  int
	MinAsOfDay         int
	Coverage           float64
	SeasonalWindowDays int
	RetrainEveryRun    bool
	Quantiles          bool
	Ridge              float64
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = EngineAuto
	}
	if o.MinCompleteMonths <= 0 {
		o.MinCompleteMonths = 2
	}
	if o.MinAsOfDay <= 0 {
		o.MinAsOfDay = DefaultMinAsOfDay
	}
	if o.Coverage <= 0 {
		o.Coverage = DefaultCoverage
	}
	if o.SeasonalWindowDays <= 0 {
		o.SeasonalWindowDays = DefaultSeasonalWindowDays
	}
	if o.Ridge <= 0 {
		o.Ridge = 1.0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

var (
	probeOnce sync.Once
	probeOK   bool
)

// linalgAvailable runs a tiny factorization once per process.
func linalgAvailable() bool {
	probeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("linear algebra backend unavailable", zap.Any("panic", r))
				probeOK = false
			}
		}()
		a := mat.NewSymDense(2, []float64{2, 1, 1, 2})
		var chol mat.Cholesky
		probeOK = chol.Factorize(a)
	})
	return probeOK
}

// New selects the forecaster implementation once. repo may be nil, in which case trained
// models are not persisted.
func New(opts Options, repo ModelRepository) Forecaster {
	opts = opts.withDefaults()
	switch opts.Engine {
	case EngineBaseline:
		logger.Info("forecast engine selected", zap.String("engine", BaselineModelName))
		return NewBaselineForecaster(opts)
	case EngineML, EngineAuto:
		if !linalgAvailable() {
			logger.Warn("ml engine unavailable, using baseline", zap.String("requested", opts.Engine))
			return NewBaselineForecaster(opts)
		}
		logger.Info("forecast engine selected", zap.String("engine", MLModelName))
		return NewMLForecaster(opts, repo)
	default:
		logger.Warn("unknown forecast engine, using baseline", zap.String("engine", opts.Engine))
		return NewBaselineForecaster(opts)
	}
}

// finalize enforces the prediction contract: totals and bands never fall below MTD actuals,
// bands are ordered around the point, and every ratio is taken after clamping.
func finalize(snap FeatureSnapshot, meta domain.ModelMeta, point domain.Totals, netBand, profitBand *domain.Band) domain.ForecastResult {
	mtd := snap.MTD
	pred := domain.Totals{
		Net:      atLeast(point.Net, mtd.Net),
		Profit:   atLeast(point.Profit, mtd.Profit),
		Tickets:  atLeast(point.Tickets, mtd.Tickets),
		Discount: atLeast(point.Discount, mtd.Discount),
	}

	res := domain.ForecastResult{
		StoreCode:     snap.StoreCode,
		AsOf:          snap.AsOf.Format(time.DateOnly),
		Model:         meta,
		MTD:           mtd,
		Predicted:     pred,
		MarginMTD:     domain.SafeDiv(mtd.Profit, mtd.Net),
		MarginPred:    domain.SafeDiv(pred.Profit, pred.Net),
		DaysInMonth:   snap.DaysInMonth,
		ElapsedDays:   snap.DayOfMonth,
		RemainingDays: snap.RemainingDays,
		PaceNet:       domain.SafeDiv(mtd.Net, float64(snap.DayOfMonth)),

		ProjectedDailyNet:   domain.SafeDiv(pred.Net, float64(snap.DaysInMonth)),
		RequiredDailyNet:    domain.SafeDiv(pred.Net-mtd.Net, float64(snap.RemainingDays)),
		RequiredDailyProfit: domain.SafeDiv(pred.Profit-mtd.Profit, float64(snap.RemainingDays)),
	}
	res.NetBand = orderBand(netBand, pred.Net, mtd.Net)
	res.ProfitBand = orderBand(profitBand, pred.Profit, mtd.Profit)
	return res
}

func orderBand(b *domain.Band, point, floor float64) *domain.Band {
	if b == nil || !finite(b.P10) || !finite(b.P90) {
		return nil
	}
	lo, hi := b.P10, b.P90
	if lo > hi {
		lo, hi = hi, lo
	}
	lo = math.Min(atLeast(lo, floor), point)
	hi = math.Max(atLeast(hi, floor), point)
	return &domain.Band{P10: lo, P90: hi}
}

// atLeast returns max(v, floor), treating a non-finite v as floor.
func atLeast(v, floor float64) float64 {
	if !finite(v) || v < floor {
		return floor
	}
	return v
}
