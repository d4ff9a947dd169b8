package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"retail-forecaster/internal/app"
	"retail-forecaster/internal/config"
	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/logger"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "", "Path to the YAML config file (default config/config.yaml or $CONFIG_PATH)")
	asOfStr := flag.String("asof", "", "Forecast as of this date (YYYY-MM-DD); defaults to the latest exported day")
	schedule := flag.Bool("schedule", false, "Keep running and forecast on the configured cron schedule")
	quiet := flag.Bool("quiet", false, "Do not print the console summary")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("CONFIG_PATH", *configPath)
	}

	var asOf *time.Time
	if *asOfStr != "" {
		d, err := time.Parse(time.DateOnly, *asOfStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing as-of date: %v\n", err)
			flag.Usage()
			os.Exit(2)
		}
		asOf = &d
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logging
	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
	}); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	// --- Dependency Injection (Wiring the application) ---
	// app.New builds the repositories, the deal engine and the forecaster
	// from the config and hands them to the report usecase.
	application, err := app.New(cfg)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}

	if *schedule {
		runScheduled(application, cfg.Schedule.Cron)
		return
	}

	// --- Execute the Usecase ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bundle, err := application.RunOnce(ctx, asOf)
	if shutdownErr := application.Shutdown(context.Background()); shutdownErr != nil {
		logger.Warn("failed to release resources", zap.Error(shutdownErr))
	}
	if errors.Is(err, domain.ErrNoTransactionData) {
		logger.Error("no store produced transaction data", zap.Strings("stores", cfg.Stores))
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal("forecast run failed", zap.Error(err))
	}

	// --- Present the Output ---
	output, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		logger.Fatal("failed to generate JSON report", zap.Error(err))
	}
	fmt.Println(string(output))

	if !*quiet {
		if err := app.WriteSummary(os.Stderr, bundle); err != nil {
			logger.Warn("failed to print summary", zap.Error(err))
		}
	}
}

func runScheduled(application *app.App, spec string) {
	if spec == "" {
		logger.Fatal("schedule mode requires schedule.cron")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Schedule(ctx, spec); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	// Wait for a shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("scheduler stopped")
}
