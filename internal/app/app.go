// Package app wires the configured repositories, forecaster and report cycle together.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"retail-forecaster/internal/config"
	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/forecast"
	"retail-forecaster/internal/gateway"
	"retail-forecaster/internal/logger"
	"retail-forecaster/internal/metrics"
	"retail-forecaster/internal/usecase"
)

// Run statuses reported to metrics.
const (
	StatusSuccess = "success"
	StatusNoData  = "no_data"
	StatusFailed  = "failed"
)

// App holds the wired application.
type App struct {
	cfg    *config.Config
	db     *gorm.DB
	report *usecase.ReportUseCase
	cron   *cron.Cron
}

// New builds every dependency described by cfg.
func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	rules, err := gateway.LoadRuleSet(cfg.Rules.Path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("deal rules not found, running without deals", zap.String("path", cfg.Rules.Path))
		rules = domain.RuleSet{}
	} else if err != nil {
		return nil, err
	}

	historyRepo, err := a.historyRepository()
	if err != nil {
		return nil, err
	}

	var modelRepo forecast.ModelRepository
	if cfg.History.Backend == "memory" {
		modelRepo = gateway.NewMemoryModelRepository()
	} else {
		modelRepo = gateway.NewFileModelRepository(cfg.Model.Dir)
	}

	forecaster := forecast.New(forecast.Options{
		Engine:             cfg.Forecast.Engine,
		MinCompleteMonths:  cfg.Forecast.MinCompleteMonths,
		MinAsOfDay:         cfg.Forecast.MinAsOfDay,
		Coverage:           cfg.Forecast.Coverage,
		SeasonalWindowDays: cfg.Forecast.SeasonalWindowDays,
		RetrainEveryRun:    cfg.Forecast.RetrainEnabled(),
		Quantiles:          cfg.Forecast.QuantilesEnabled(),
		Ridge:              cfg.Forecast.Ridge,
	}, modelRepo)

	a.report = usecase.NewReportUseCase(
		gateway.NewCSVTransactionRepository(cfg.Input.Dir, cfg.Input.Pattern),
		usecase.NewHistoryStore(historyRepo),
		usecase.NewDealRuleEngine(rules, cfg.Stores),
		forecaster,
		cfg.Stores,
	)
	return a, nil
}

func (a *App) historyRepository() (usecase.HistoryRepository, error) {
	switch a.cfg.History.Backend {
	case "memory":
		return gateway.NewMemoryHistoryRepository(), nil
	case "sqlite", "postgres":
		db, err := gateway.OpenHistoryDB(a.cfg.History.Backend, a.cfg.History.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
		return gateway.NewGormHistoryRepository(db, a.cfg.History.BatchSize)
	default:
		return gateway.NewFileHistoryRepository(a.cfg.History.Path), nil
	}
}

// RunOnce performs one report cycle and writes its outputs.
func (a *App) RunOnce(ctx context.Context, asOf *time.Time) (*domain.ForecastBundle, error) {
	start := time.Now()
	bundle, err := a.report.Run(ctx, asOf)

	status := StatusSuccess
	switch {
	case errors.Is(err, domain.ErrNoTransactionData):
		status = StatusNoData
	case err != nil:
		status = StatusFailed
	}
	metrics.RecordRun(status, time.Since(start))
	a.writeMetrics()

	if err != nil {
		return nil, err
	}

	if err := writeBundle(a.cfg.Output.Path, bundle); err != nil {
		logger.Error("failed to write forecast output", zap.String("path", a.cfg.Output.Path), zap.Error(err))
	}

	logger.Info("run finished",
		zap.String("run_id", bundle.RunID),
		zap.String("as_of", bundle.AsOf),
		zap.Int("skipped", len(bundle.Skipped)),
		zap.Duration("elapsed", time.Since(start)))
	return bundle, nil
}

func (a *App) writeMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		logger.Warn("failed to write metrics", zap.Error(err))
	}
}

// Schedule starts recurring runs on spec. Overlapping runs are skipped.
func (a *App) Schedule(ctx context.Context, spec string) error {
	cl := cronLogger{s: logger.L().Sugar()}
	a.cron = cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	_, err := a.cron.AddFunc(spec, func() {
		if _, err := a.RunOnce(ctx, nil); err != nil {
			logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	a.cron.Start()
	logger.Info("scheduler started", zap.String("cron", spec))
	return nil
}

// Shutdown waits for a running job and closes the database.
func (a *App) Shutdown(ctx context.Context) error {
	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func writeBundle(path string, bundle *domain.ForecastBundle) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteSummary prints a one-line-per-store table of bundle.
func WriteSummary(w io.Writer, bundle *domain.ForecastBundle) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "store\tmtd net\tpred net\tp10\tp90\tpred profit\tmargin\treq/day\t\n")

	results := append(append([]domain.ForecastResult(nil), bundle.Stores...), bundle.All)
	for _, r := range results {
		p10, p90 := "-", "-"
		if r.NetBand != nil {
			p10, p90 = money(r.NetBand.P10), money(r.NetBand.P90)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.StoreCode,
			money(r.MTD.Net),
			money(r.Predicted.Net),
			p10, p90,
			money(r.Predicted.Profit),
			decimal.NewFromFloat(r.MarginPred*100).StringFixed(1)+"%",
			money(r.RequiredDailyNet))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, s := range bundle.Skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", s.StoreCode, s.Reason)
	}
	_, err := fmt.Fprintf(w, "as of %s, model %s, %d samples, %d complete months\n",
		bundle.AsOf, bundle.Model.ModelName, bundle.Model.Samples, bundle.Model.CompleteMonths)
	return err
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
