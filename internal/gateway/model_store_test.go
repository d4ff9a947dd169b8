package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/forecast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() *forecast.Bundle {
	trainedAt := time.Date(2025, 10, 11, 6, 0, 0, 0, time.UTC)
	return &forecast.Bundle{
		Meta: domain.ModelMeta{
			ModelName:      forecast.MLModelName,
			TrainedAt:      &trainedAt,
			Samples:        120,
			CompleteMonths: 4,
		},
		FeatureNames: []string{"year", "month"},
		Encoder: &forecast.Encoder{
			Names:   []string{"year", "month"},
			Medians: []float64{2025, 7.5},
			Means:   []float64{2025, 7.5},
			Scales:  []float64{1, 1.118033988749895},
			Stores:  []string{"ALL", "MV"},
		},
		Point: map[string]*forecast.LinearModel{
			forecast.TargetNet: {Intercept: 30000.25, Coef: []float64{0.1, -2.5}},
		},
		Quantiles: map[string]forecast.QuantilePair{
			forecast.TargetNet: {
				P10: &forecast.LinearModel{Intercept: 27000, Coef: []float64{0, 1}},
				P90: &forecast.LinearModel{Intercept: 33000, Coef: []float64{0, 1}},
			},
		},
	}
}

func TestFileModelRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "models")
	repo := NewFileModelRepository(dir)

	want := sampleBundle()
	require.NoError(t, repo.SaveBundle(ctx, want))

	got, err := repo.LoadBundle(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	meta, err := os.ReadFile(filepath.Join(dir, "model_meta.json"))
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"model_name": "ridge_linear"`)
	assert.Contains(t, string(meta), `"samples": 120`)
}

func TestFileModelRepository_MissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo := NewFileModelRepository(dir)

	_, err := repo.LoadBundle(ctx)
	assert.ErrorIs(t, err, forecast.ErrNoModel)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("{not json"), 0o644))
	_, err = repo.LoadBundle(ctx)

	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "model", perr.Resource)
	assert.NotErrorIs(t, err, forecast.ErrNoModel)
}

func TestMemoryModelRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryModelRepository()

	_, err := repo.LoadBundle(ctx)
	assert.ErrorIs(t, err, forecast.ErrNoModel)

	b := sampleBundle()
	require.NoError(t, repo.SaveBundle(ctx, b))
	got, err := repo.LoadBundle(ctx)
	require.NoError(t, err)
	assert.Same(t, b, got)
	assert.Equal(t, 1, repo.Saves)
}
