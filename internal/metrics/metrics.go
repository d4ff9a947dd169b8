// Package metrics holds the Prometheus instruments of the forecaster.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"retail-forecaster/internal/domain"
)

const namespace = "retail_forecaster"

// Registry holds only this service's instruments, so a textfile export stays small.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Run metrics
var (
	// RunsTotal counts report runs by status: success, no_data or failed.
	RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Report runs by status",
		},
		[]string{"status"},
	)

	RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Report run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run",
		},
	)

	// StoresSkippedTotal counts stores left out of a run, by reason: data_gap, column_missing, read_error.
	StoresSkippedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stores_skipped_total",
			Help:      "Stores skipped during a run",
		},
		[]string{"store", "reason"},
	)

	TransactionRowsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_rows_total",
			Help:      "Transaction rows read per store",
		},
		[]string{"store"},
	)
)

// Model and history metrics
var (
	HistoryRows = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_rows",
			Help:      "Rows in the daily metrics history, ALL rows included",
		},
	)

	// HistoryPersistenceErrorsTotal counts history table failures by operation: load, save.
	HistoryPersistenceErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_persistence_errors_total",
			Help:      "History table load and save failures",
		},
		[]string{"op"},
	)

	TrainingSamples = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_samples",
			Help:      "Samples mined from complete months in the last run",
		},
	)

	CompleteMonths = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "complete_months",
			Help:      "Complete calendar months available for training",
		},
	)

	// ModelInfo is 1 for the model family that produced the last forecast.
	ModelInfo = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_info",
			Help:      "Model family used by the last run",
		},
		[]string{"model"},
	)

	// PredictedTotal is the month-end projection per store and target.
	PredictedTotal = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "predicted_month_total",
			Help:      "Predicted month-end total",
		},
		[]string{"store", "target"},
	)

	MTDTotal = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mtd_total",
			Help:      "Month-to-date actual total",
		},
		[]string{"store", "target"},
	)
)

// RecordRun observes a finished run.
func RecordRun(status string, elapsed time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(elapsed.Seconds())
	LastRunTimestamp.SetToCurrentTime()
}

// ObserveBundle publishes the forecast of every store in b.
func ObserveBundle(b *domain.ForecastBundle) {
	HistoryRows.Set(float64(b.HistoryRows))
	TrainingSamples.Set(float64(b.Model.Samples))
	CompleteMonths.Set(float64(b.Model.CompleteMonths))
	ModelInfo.Reset()
	ModelInfo.WithLabelValues(b.Model.ModelName).Set(1)

	results := append(append([]domain.ForecastResult(nil), b.Stores...), b.All)
	for _, r := range results {
		observeTotals(PredictedTotal, r.StoreCode, r.Predicted)
		observeTotals(MTDTotal, r.StoreCode, r.MTD)
	}
}

func observeTotals(vec *prometheus.GaugeVec, store string, t domain.Totals) {
	vec.WithLabelValues(store, "net").Set(t.Net)
	vec.WithLabelValues(store, "profit").Set(t.Profit)
	vec.WithLabelValues(store, "tickets").Set(t.Tickets)
	vec.WithLabelValues(store, "discount").Set(t.Discount)
}

// WriteTextfile writes Registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
