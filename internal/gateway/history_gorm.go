package gateway

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"retail-forecaster/internal/domain"
)

// GormHistoryRepository stores the history table in a SQL database, one row per
// (store_code, date).
type GormHistoryRepository struct {
	db        *gorm.DB
	batchSize int
}

// OpenHistoryDB opens a database for the sqlite or postgres backend.
func OpenHistoryDB(backend, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch backend {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported history database backend %q", backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history database: %w", backend, err)
	}
	return db, nil
}

// NewGormHistoryRepository creates the repository and migrates its table.
func NewGormHistoryRepository(db *gorm.DB, batchSize int) (*GormHistoryRepository, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if err := db.AutoMigrate(&domain.DailyMetricRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history table: %w", err)
	}
	return &GormHistoryRepository{db: db, batchSize: batchSize}, nil
}

// Load returns every row ordered by date, then store code.
func (r *GormHistoryRepository) Load(ctx context.Context) ([]domain.DailyMetricRecord, error) {
	var records []domain.DailyMetricRecord
	err := r.db.WithContext(ctx).
		Order("date ASC, store_code ASC").
		Find(&records).Error
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Resource: "history table", Cause: err}
	}
	for i := range records {
		records[i].Date = domain.DateOnly(records[i].Date)
	}
	return records, nil
}

// Save upserts every record on (store_code, date). History is an append-only ledger,
// so rows absent from records are left in place.
func (r *GormHistoryRepository) Save(ctx context.Context, records []domain.DailyMetricRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "store_code"},
			{Name: "date"},
		},
		UpdateAll: true,
	}).CreateInBatches(&records, r.batchSize).Error
	if err != nil {
		return &domain.PersistenceError{Op: "save", Resource: "history table", Cause: err}
	}
	return nil
}
