package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/logger"
)

// HistoryStore keeps the long-term daily metrics table: one row per (store_code, date),
// plus a synthetic ALL row per date. Callers must serialize runs; there is no locking.
type HistoryStore struct {
	repo HistoryRepository
	rows map[domain.RecordKey]domain.DailyMetricRecord
	// detached is set when the persisted table could not be read; saving would clobber it.
	detached bool
}

// NewHistoryStore creates a store backed by repo. Call Open before use.
func NewHistoryStore(repo HistoryRepository) *HistoryStore {
	return &HistoryStore{
		repo: repo,
		rows: make(map[domain.RecordKey]domain.DailyMetricRecord),
	}
}

// Open loads the persisted table. An unreadable table is logged and the store starts empty,
// so the run continues in memory; the returned error is informational.
func (s *HistoryStore) Open(ctx context.Context) error {
	s.rows = make(map[domain.RecordKey]domain.DailyMetricRecord)
	s.detached = false

	records, err := s.repo.Load(ctx)
	if err != nil {
		perr := asPersistenceError(err, "load")
		logger.Error("history table unreadable, continuing with in-memory history", zap.Error(perr))
		s.detached = true
		return perr
	}

	for _, rec := range records {
		rec.Date = domain.DateOnly(rec.Date)
		s.rows[rec.Key()] = rec
	}
	logger.Info("history loaded", zap.Int("rows", len(s.rows)))
	return nil
}

// Upsert merges records into the table (newest value wins per key), rebuilds the ALL row
// of every touched date, and persists the table. When saving fails the in-memory table is
// still updated and a *domain.PersistenceError is returned. After a failed Open nothing is
// saved.
func (s *HistoryStore) Upsert(ctx context.Context, records []domain.DailyMetricRecord) error {
	touched := make(map[time.Time]struct{})
	for _, rec := range records {
		if rec.StoreCode == domain.AllStoresCode {
			continue
		}
		rec.Date = domain.DateOnly(rec.Date)
		rec.Recompute()
		s.rows[rec.Key()] = rec
		touched[rec.Date] = struct{}{}
	}

	for day := range touched {
		s.rows[domain.RecordKey{StoreCode: domain.AllStoresCode, Date: day.Format(time.DateOnly)}] = s.aggregateAll(day)
	}

	if s.detached {
		logger.Warn("history opened in memory only, skipping save", zap.Int("rows", len(s.rows)))
		return nil
	}
	if err := s.repo.Save(ctx, s.Records()); err != nil {
		perr := asPersistenceError(err, "save")
		logger.Error("failed to persist history", zap.Error(perr))
		return perr
	}
	return nil
}

// Records returns the table sorted by date, then store code.
func (s *HistoryStore) Records() []domain.DailyMetricRecord {
	out := make([]domain.DailyMetricRecord, 0, len(s.rows))
	for _, rec := range s.rows {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StoreCode < out[j].StoreCode
	})
	return out
}

// Len returns the number of rows in the table.
func (s *HistoryStore) Len() int {
	return len(s.rows)
}

// aggregateAll sums every concrete store row of day and recomputes ratios from the sums.
func (s *HistoryStore) aggregateAll(day time.Time) domain.DailyMetricRecord {
	dateKey := day.Format(time.DateOnly)
	stores := make([]domain.DailyMetricRecord, 0)
	for key, rec := range s.rows {
		if key.Date == dateKey && key.StoreCode != domain.AllStoresCode {
			stores = append(stores, rec)
		}
	}
	// Fixed summation order keeps re-upserts bit-identical.
	sort.Slice(stores, func(i, j int) bool { return stores[i].StoreCode < stores[j].StoreCode })

	all := domain.DailyMetricRecord{StoreCode: domain.AllStoresCode, Date: day}
	for _, rec := range stores {
		all.Add(rec)
	}
	all.Recompute()
	return all
}

func asPersistenceError(err error, op string) *domain.PersistenceError {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return perr
	}
	return &domain.PersistenceError{Op: op, Resource: "history", Cause: err}
}
