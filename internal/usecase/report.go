package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/forecast"
	"retail-forecaster/internal/logger"
	"retail-forecaster/internal/metrics"
)

// Skip reasons recorded in ForecastBundle.Skipped.
const (
	SkipDataGap       = "data_gap"
	SkipColumnMissing = "column_missing"
	SkipReadError     = "read_error"
)

// ReportUseCase orchestrates one reporting cycle: ingest, enrich, aggregate, persist, forecast.
// Runs must not overlap.
type ReportUseCase struct {
	transactions TransactionRepository
	history      *HistoryStore
	deals        *DealRuleEngine
	forecaster   forecast.Forecaster
	stores       []string
	now          func() time.Time
}

// NewReportUseCase creates a new instance of the usecase.
func NewReportUseCase(
	transactions TransactionRepository,
	history *HistoryStore,
	deals *DealRuleEngine,
	forecaster forecast.Forecaster,
	stores []string,
) *ReportUseCase {
	return &ReportUseCase{
		transactions: transactions,
		history:      history,
		deals:        deals,
		forecaster:   forecaster,
		stores:       stores,
		now:          time.Now,
	}
}

// Run performs one cycle. asOf defaults to the latest date found in this run's transactions.
// domain.ErrNoTransactionData is the only failure; every other problem is logged and skipped.
func (uc *ReportUseCase) Run(ctx context.Context, asOf *time.Time) (*domain.ForecastBundle, error) {
	bundle := &domain.ForecastBundle{
		RunID:       uuid.NewString(),
		GeneratedAt: uc.now().UTC(),
	}
	log := logger.L().With(zap.String("run_id", bundle.RunID))

	// Step 1: Ingestion, enrichment and aggregation per store
	var daily []domain.DailyMetricRecord
	var latest time.Time
	for _, store := range uc.stores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := uc.transactions.GetTransactions(ctx, store)
		if err != nil {
			reason := skipReason(err)
			if reason == SkipDataGap {
				log.Warn("no export for store, skipping", zap.String("store", store), zap.Error(err))
			} else {
				log.Error("store export unusable, skipping", zap.String("store", store), zap.Error(err))
			}
			bundle.Skipped = append(bundle.Skipped, domain.SkippedStore{StoreCode: store, Reason: reason})
			metrics.StoresSkippedTotal.WithLabelValues(store, reason).Inc()
			continue
		}
		metrics.TransactionRowsTotal.WithLabelValues(store).Add(float64(len(rows)))

		records, stats := AggregateDaily(store, uc.deals.Apply(rows, store))
		log.Info("store aggregated",
			zap.String("store", store),
			zap.Int("rows", stats.Rows),
			zap.Int("days", stats.Days),
			zap.Bool("tickets_estimated", stats.TicketsEstimated))

		for _, rec := range records {
			if rec.Date.After(latest) {
				latest = rec.Date
			}
		}
		daily = append(daily, records...)
	}

	if len(daily) == 0 {
		return nil, domain.ErrNoTransactionData
	}

	// Step 2: History. The store logs persistence problems; the run records them and goes on.
	if err := uc.history.Open(ctx); err != nil {
		recordPersistenceError(bundle, err)
	}
	if err := uc.history.Upsert(ctx, daily); err != nil {
		recordPersistenceError(bundle, err)
	}
	records := uc.history.Records()
	bundle.HistoryRows = len(records)

	day := latest
	if asOf != nil {
		day = domain.DateOnly(*asOf)
	}
	bundle.AsOf = day.Format(time.DateOnly)

	// Step 3: Forecast
	h := forecast.NewHistory(records)
	bundle.Model = uc.forecaster.Train(ctx, h)
	log.Info("forecaster ready",
		zap.String("model", uc.forecaster.Name()),
		zap.Int("samples", bundle.Model.Samples),
		zap.Int("complete_months", bundle.Model.CompleteMonths),
		zap.String("as_of", bundle.AsOf))

	bundle.Stores = make([]domain.ForecastResult, 0, len(uc.stores))
	for _, store := range uc.stores {
		bundle.Stores = append(bundle.Stores, uc.forecaster.Predict(h, store, day))
	}
	bundle.All = uc.forecaster.Predict(h, domain.AllStoresCode, day)

	metrics.ObserveBundle(bundle)
	return bundle, nil
}

func recordPersistenceError(bundle *domain.ForecastBundle, err error) {
	op := "unknown"
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		op = perr.Op
	}
	metrics.HistoryPersistenceErrorsTotal.WithLabelValues(op).Inc()
	bundle.Warnings = append(bundle.Warnings, err.Error())
}

func skipReason(err error) string {
	var gap *domain.DataGapError
	var missing *domain.ColumnMissingError
	switch {
	case errors.As(err, &gap):
		return SkipDataGap
	case errors.As(err, &missing):
		return SkipColumnMissing
	default:
		return SkipReadError
	}
}
