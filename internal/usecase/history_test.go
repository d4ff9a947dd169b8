package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/usecase"
	mock_usecase "retail-forecaster/internal/usecase/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metric(store, date string, net, profit, tickets float64) domain.DailyMetricRecord {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return domain.DailyMetricRecord{StoreCode: store, Date: d, NetRevenue: net, GrossSales: net, Profit: profit, ProfitReal: profit, Tickets: tickets}
}

func TestHistoryStore_UpsertBuildsAllRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock_usecase.NewMockHistoryRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return(nil, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	store := usecase.NewHistoryStore(repo)
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Upsert(context.Background(), []domain.DailyMetricRecord{
		metric("MV", "2025-09-01", 1000, 300, 40),
		metric("LM", "2025-09-01", 500, 50, 10),
		metric("MV", "2025-09-02", 800, 200, 20),
		metric(domain.AllStoresCode, "2025-09-01", 1, 1, 1), // ignored, ALL is derived
	}))

	got := store.Records()
	require.Len(t, got, 5)
	assert.Equal(t, []string{"ALL", "LM", "MV", "ALL", "MV"}, storeCodes(got))

	all := got[0]
	assert.InDelta(t, 1500, all.NetRevenue, 1e-9)
	assert.InDelta(t, 350, all.Profit, 1e-9)
	assert.InDelta(t, 50, all.Tickets, 1e-9)
	assert.InDelta(t, 350.0/1500, all.Margin, 1e-12, "margin recomputed from sums")
	assert.InDelta(t, 30, all.Basket, 1e-9)
	assert.InDelta(t, 800, got[3].NetRevenue, 1e-9)
}

func TestHistoryStore_UpsertIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var saved [][]domain.DailyMetricRecord
	repo := mock_usecase.NewMockHistoryRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return(nil, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, records []domain.DailyMetricRecord) error {
		saved = append(saved, records)
		return nil
	}).Times(2)

	batch := []domain.DailyMetricRecord{
		metric("MV", "2025-09-01", 0.1, 0.2, 3),
		metric("LM", "2025-09-01", 0.2, 0.1, 1),
		metric("WH", "2025-09-01", 0.3, 0.3, 2),
	}
	store := usecase.NewHistoryStore(repo)
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Upsert(context.Background(), batch))
	require.NoError(t, store.Upsert(context.Background(), batch))

	require.Len(t, saved, 2)
	assert.Equal(t, saved[0], saved[1])
	assert.Equal(t, 4, store.Len())
}

func TestHistoryStore_NewestValueWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock_usecase.NewMockHistoryRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return([]domain.DailyMetricRecord{
		metric("MV", "2025-09-01", 1000, 300, 40),
		metric("LM", "2025-09-01", 500, 50, 10),
	}, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	store := usecase.NewHistoryStore(repo)
	require.NoError(t, store.Open(context.Background()))
	require.NoError(t, store.Upsert(context.Background(), []domain.DailyMetricRecord{metric("MV", "2025-09-01", 1200, 400, 45)}))

	got := store.Records()
	require.Len(t, got, 3)
	assert.InDelta(t, 1700, got[0].NetRevenue, 1e-9, "ALL rebuilt with the new MV value")
	assert.InDelta(t, 1200, got[2].NetRevenue, 1e-9)
}

func TestHistoryStore_SaveFailureKeepsMemory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock_usecase.NewMockHistoryRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return(nil, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	store := usecase.NewHistoryStore(repo)
	require.NoError(t, store.Open(context.Background()))
	err := store.Upsert(context.Background(), []domain.DailyMetricRecord{metric("MV", "2025-09-01", 1000, 300, 40)})

	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "save", perr.Op)
	assert.Equal(t, "history", perr.Resource)
	assert.Equal(t, 2, store.Len())
}

func TestHistoryStore_UnreadableTableIsNotOverwritten(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Save expectation: the run continues in memory only.
	repo := mock_usecase.NewMockHistoryRepository(ctrl)
	repo.EXPECT().Load(gomock.Any()).Return(nil, errors.New("checksum mismatch"))

	store := usecase.NewHistoryStore(repo)
	err := store.Open(context.Background())

	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "load", perr.Op)
	assert.Zero(t, store.Len())

	require.NoError(t, store.Upsert(context.Background(), []domain.DailyMetricRecord{metric("MV", "2025-09-01", 1000, 300, 40)}))
	assert.Equal(t, 2, store.Len())
}

func storeCodes(records []domain.DailyMetricRecord) []string {
	codes := make([]string, len(records))
	for i, r := range records {
		codes[i] = r.StoreCode
	}
	return codes
}
