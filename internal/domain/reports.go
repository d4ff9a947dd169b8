package domain

import "time"

// Totals holds the four forecast targets.
type Totals struct {
	Net      float64 `json:"net"`
	Profit   float64 `json:"profit"`
	Tickets  float64 `json:"tickets"`
	Discount float64 `json:"discount"`
}

// Band is a P10-P90 uncertainty interval.
type Band struct {
	P10 float64 `json:"p10"`
	P90 float64 `json:"p90"`
}

// ModelMeta describes the model that produced a forecast.
type ModelMeta struct {
	ModelName      string     `json:"model_name"`
	// TrainedAt is nil for the baseline, which has nothing to train.
	TrainedAt      *time.Time `json:"trained_at,omitempty"`
	Samples        int        `json:"samples"`
	CompleteMonths int        `json:"complete_months"`
}

// ForecastResult is the month-end projection for one store as of one date.
type ForecastResult struct {
	StoreCode           string    `json:"store_code"`
	AsOf                string    `json:"as_of"`
	Model               ModelMeta `json:"model"`
	MTD                 Totals    `json:"mtd"`
	Predicted           Totals    `json:"predicted"`
	MarginMTD           float64   `json:"margin_mtd"`
	MarginPred          float64   `json:"margin_pred"`
	DaysInMonth         int       `json:"days_in_month"`
	ElapsedDays         int       `json:"elapsed_days"`
	RemainingDays       int       `json:"remaining_days"`
	// PaceNet is the month-to-date average daily net revenue.
	PaceNet             float64   `json:"pace_net"`
	// ProjectedDailyNet is the predicted net spread over the whole month.
	ProjectedDailyNet   float64   `json:"projected_daily_net"`
	RequiredDailyNet    float64   `json:"required_daily_net"`
	RequiredDailyProfit float64   `json:"required_daily_profit"`
	NetBand             *Band     `json:"net_band,omitempty"`
	ProfitBand          *Band     `json:"profit_band,omitempty"`
}

// SkippedStore records why a store did not contribute to a run.
type SkippedStore struct {
	StoreCode string `json:"store_code"`
	Reason    string `json:"reason"`
}

// ForecastBundle is the top-level structure handed to report renderers.
type ForecastBundle struct {
	RunID       string           `json:"run_id"`
	AsOf        string           `json:"as_of"`
	GeneratedAt time.Time        `json:"generated_at"`
	Model       ModelMeta        `json:"model"`
	Stores      []ForecastResult `json:"stores"`
	All         ForecastResult   `json:"all"`
	Skipped     []SkippedStore   `json:"skipped,omitempty"`
	HistoryRows int              `json:"history_rows"`
	// Warnings lists non-fatal problems, such as history that could not be loaded or saved.
	Warnings    []string         `json:"warnings,omitempty"`
}
