package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full run configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service" json:"service"`
	Stores   []string       `yaml:"stores" json:"stores"`
	Input    InputConfig    `yaml:"input" json:"input"`
	Rules    RulesConfig    `yaml:"rules" json:"rules"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Model    ModelConfig    `yaml:"model" json:"model"`
	Forecast ForecastConfig `yaml:"forecast" json:"forecast"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

type ServiceConfig struct {
	Name string `yaml:"name" json:"name"`
	Env  string `yaml:"env" json:"env"`
}

// InputConfig locates the per-store transaction exports.
type InputConfig struct {
	Dir string `yaml:"dir" json:"dir"`
	// Pattern is a glob relative to Dir; {store} is replaced by the store code.
	Pattern string `yaml:"pattern" json:"pattern"`
}

type RulesConfig struct {
	Path string `yaml:"path" json:"path"`
}

// HistoryConfig selects the history table backend.
type HistoryConfig struct {
	Backend   string `yaml:"backend" json:"backend"` // file, sqlite, postgres, memory
	Path      string `yaml:"path" json:"path"`
	DSN       string `yaml:"dsn" json:"dsn"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
}

type ModelConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// ForecastConfig tunes the feature, training and forecasting stages.
type ForecastConfig struct {
	Engine             string  `yaml:"engine" json:"engine"` // auto, ml, baseline
	MinCompleteMonths  int     `yaml:"min_complete_months" json:"min_complete_months"`
	MinAsOfDay         int     `yaml:"min_asof_day" json:"min_asof_day"`
	Coverage           float64 `yaml:"coverage" json:"coverage"`
	SeasonalWindowDays int     `yaml:"seasonal_window_days" json:"seasonal_window_days"`
	RetrainEveryRun    *bool   `yaml:"retrain_every_run" json:"retrain_every_run"`
	Quantiles          *bool   `yaml:"quantiles" json:"quantiles"`
	Ridge              float64 `yaml:"ridge" json:"ridge"`
}

type OutputConfig struct {
	Path string `yaml:"path" json:"path"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron" json:"cron"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load reads the config file (if any), applies defaults and then environment overrides.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(getConfigPath())
	if err == nil {
		content := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}

	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), "config", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "config/config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "retail-forecaster"
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	if cfg.Input.Dir == "" {
		cfg.Input.Dir = "exports"
	}
	if cfg.Input.Pattern == "" {
		cfg.Input.Pattern = "{store}*.csv"
	}
	if cfg.Rules.Path == "" {
		cfg.Rules.Path = "config/deals.yaml"
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = "file"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "data/history.csv.gz"
	}
	if cfg.History.BatchSize == 0 {
		cfg.History.BatchSize = 500
	}
	if cfg.Model.Dir == "" {
		cfg.Model.Dir = "data/model"
	}

	if cfg.Forecast.Engine == "" {
		cfg.Forecast.Engine = "auto"
	}
	if cfg.Forecast.MinCompleteMonths == 0 {
		cfg.Forecast.MinCompleteMonths = 2
	}
	if cfg.Forecast.MinAsOfDay == 0 {
		cfg.Forecast.MinAsOfDay = 4
	}
	if cfg.Forecast.Coverage == 0 {
		cfg.Forecast.Coverage = 0.90
	}
	if cfg.Forecast.SeasonalWindowDays == 0 {
		cfg.Forecast.SeasonalWindowDays = 56
	}
	if cfg.Forecast.RetrainEveryRun == nil {
		cfg.Forecast.RetrainEveryRun = boolPtr(true)
	}
	if cfg.Forecast.Quantiles == nil {
		cfg.Forecast.Quantiles = boolPtr(true)
	}
	if cfg.Forecast.Ridge == 0 {
		cfg.Forecast.Ridge = 1.0
	}

	if cfg.Output.Path == "" {
		cfg.Output.Path = "data/forecast.json"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.Service.Name = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Service.Env = v
	}
	if v := os.Getenv("STORES"); v != "" {
		cfg.Stores = splitList(v)
	}
	if v := os.Getenv("EXPORTS_DIR"); v != "" {
		cfg.Input.Dir = v
	}
	if v := os.Getenv("DEALS_PATH"); v != "" {
		cfg.Rules.Path = v
	}

	if v := os.Getenv("HISTORY_BACKEND"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		cfg.Model.Dir = v
	}

	if v := os.Getenv("FORECAST_ENGINE"); v != "" {
		cfg.Forecast.Engine = v
	}
	if v := os.Getenv("FORECAST_MIN_COMPLETE_MONTHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Forecast.MinCompleteMonths = n
		}
	}
	if v := os.Getenv("FORECAST_MIN_ASOF_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Forecast.MinAsOfDay = n
		}
	}
	if v := os.Getenv("FORECAST_COVERAGE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Forecast.Coverage = f
		}
	}
	if v := os.Getenv("FORECAST_RETRAIN_EVERY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Forecast.RetrainEveryRun = boolPtr(b)
		}
	}

	if v := os.Getenv("OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	if v := os.Getenv("SCHEDULE_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Validate rejects settings no run could succeed with.
func (c *Config) Validate() error {
	if len(c.Stores) == 0 {
		return fmt.Errorf("no stores configured")
	}
	switch c.History.Backend {
	case "file", "memory":
	case "sqlite", "postgres":
		if c.History.DSN == "" {
			return fmt.Errorf("history backend %s requires a dsn", c.History.Backend)
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	switch c.Forecast.Engine {
	case "auto", "ml", "baseline":
	default:
		return fmt.Errorf("unknown forecast engine %q", c.Forecast.Engine)
	}
	if c.Forecast.Coverage <= 0 || c.Forecast.Coverage > 1 {
		return fmt.Errorf("forecast coverage must be in (0, 1], got %v", c.Forecast.Coverage)
	}
	return nil
}

// RetrainEnabled reports the effective retraining policy.
func (f ForecastConfig) RetrainEnabled() bool {
	return f.RetrainEveryRun == nil || *f.RetrainEveryRun
}

// QuantilesEnabled reports whether P10/P90 models are fitted.
func (f ForecastConfig) QuantilesEnabled() bool {
	return f.Quantiles == nil || *f.Quantiles
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
