package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-forecaster/internal/config"
	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/forecast"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("Order Time,Order ID,Product Name,Category,Net Sales,Inventory Cost\n")
	for d := 1; d <= 10; d++ {
		fmt.Fprintf(&b, "2025-09-%02d 12:00:00,MV-%d,Acme | Gummies,Edibles,1000,700\n", d, d)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MV_export.csv"), []byte(b.String()), 0o644))

	return &config.Config{
		Stores:   []string{"MV", "LM"},
		Input:    config.InputConfig{Dir: dir, Pattern: "{store}*.csv"},
		Rules:    config.RulesConfig{Path: filepath.Join(dir, "missing.yaml")},
		History:  config.HistoryConfig{Backend: "memory"},
		Forecast: config.ForecastConfig{Engine: forecast.EngineBaseline},
		Output:   config.OutputConfig{Path: filepath.Join(dir, "out", "forecast.json")},
		Metrics:  config.MetricsConfig{Textfile: filepath.Join(dir, "forecaster.prom")},
	}
}

func TestApp_RunOnce(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)

	bundle, err := a.RunOnce(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "2025-09-10", bundle.AsOf)
	assert.Equal(t, []domain.SkippedStore{{StoreCode: "LM", Reason: "data_gap"}}, bundle.Skipped)
	require.Len(t, bundle.Stores, 2)
	assert.InDelta(t, 30000, bundle.Stores[0].Predicted.Net, 1e-6)

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	var written domain.ForecastBundle
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, bundle.RunID, written.RunID)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "retail_forecaster_runs_total")

	require.NoError(t, a.Shutdown(context.Background()))
}

func TestApp_ShutdownClosesHistoryDB(t *testing.T) {
	cfg := testConfig(t)
	cfg.History = config.HistoryConfig{
		Backend:   "sqlite",
		DSN:       filepath.Join(t.TempDir(), "history.db"),
		BatchSize: 100,
	}
	cfg.Model.Dir = filepath.Join(t.TempDir(), "model")
	a, err := New(cfg)
	require.NoError(t, err)

	bundle, err := a.RunOnce(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, bundle.Warnings)
	assert.Equal(t, 20, bundle.HistoryRows)

	require.NoError(t, a.Shutdown(context.Background()))
	sqlDB, err := a.db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "connection pool is closed")
}

func TestApp_RunOnceWithoutData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stores = []string{"LM"}
	a, err := New(cfg)
	require.NoError(t, err)

	_, err = a.RunOnce(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoTransactionData)

	_, statErr := os.Stat(cfg.Output.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestApp_InvalidRules(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Rules.Path, []byte("brands: [oops"), 0o644))

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestApp_Schedule(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	assert.Error(t, a.Schedule(context.Background(), "not a cron line"))

	require.NoError(t, a.Schedule(context.Background(), "@every 1h"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Shutdown(ctx))
}

func TestWriteSummary(t *testing.T) {
	bundle := &domain.ForecastBundle{
		AsOf:  "2025-09-10",
		Model: domain.ModelMeta{ModelName: "ridge_linear", Samples: 120, CompleteMonths: 4},
		Stores: []domain.ForecastResult{{
			StoreCode:  "MV",
			MTD:        domain.Totals{Net: 10000},
			Predicted:  domain.Totals{Net: 30000, Profit: 9000},
			MarginPred: 0.3,
			NetBand:    &domain.Band{P10: 28000, P90: 32000.5},
		}},
		All:     domain.ForecastResult{StoreCode: domain.AllStoresCode},
		Skipped: []domain.SkippedStore{{StoreCode: "LM", Reason: "data_gap"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, bundle))

	out := buf.String()
	assert.Contains(t, out, "30000.00")
	assert.Contains(t, out, "32000.50")
	assert.Contains(t, out, "30.0%")
	assert.Contains(t, out, "skipped LM: data_gap")
	assert.Contains(t, out, "model ridge_linear, 120 samples, 4 complete months")
}
