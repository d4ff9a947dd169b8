package usecase

import (
	"context"

	"retail-forecaster/internal/domain"
)

// TransactionRepository defines the interface for fetching normalized transaction rows.
// The usecase layer depends on this interface, not on a concrete implementation.
//
//go:generate mockgen -destination=mocks/mock_repository.go -source=interface.go TransactionRepository,HistoryRepository
type TransactionRepository interface {
	// GetTransactions returns every row exported for a store. A missing export is a *domain.DataGapError,
	// a missing required column a *domain.ColumnMissingError.
	GetTransactions(ctx context.Context, storeCode string) ([]domain.TransactionRow, error)
}

// HistoryRepository persists the long-term daily metrics table.
type HistoryRepository interface {
	// Load returns the full table. A store that does not exist yet yields an empty table.
	Load(ctx context.Context) ([]domain.DailyMetricRecord, error)
	// Save replaces the persisted rows with records, keyed by (store_code, date).
	Save(ctx context.Context, records []domain.DailyMetricRecord) error
}
