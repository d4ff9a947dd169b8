package gateway

import (
	"context"

	"retail-forecaster/internal/domain"
)

// MemoryHistoryRepository keeps the history table in memory. Used by tests and dry runs.
type MemoryHistoryRepository struct {
	records []domain.DailyMetricRecord
	Saves   int
}

// NewMemoryHistoryRepository creates a repository seeded with records.
func NewMemoryHistoryRepository(records ...domain.DailyMetricRecord) *MemoryHistoryRepository {
	return &MemoryHistoryRepository{records: append([]domain.DailyMetricRecord(nil), records...)}
}

// Load returns a copy of the stored table.
func (r *MemoryHistoryRepository) Load(ctx context.Context) ([]domain.DailyMetricRecord, error) {
	return append([]domain.DailyMetricRecord(nil), r.records...), nil
}

// Save replaces the stored table with a copy of records.
func (r *MemoryHistoryRepository) Save(ctx context.Context, records []domain.DailyMetricRecord) error {
	r.records = append([]domain.DailyMetricRecord(nil), records...)
	r.Saves++
	return nil
}
