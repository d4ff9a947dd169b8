package gateway

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"retail-forecaster/internal/domain"
)

// historyColumns is the on-disk column order of the history table.
var historyColumns = []string{
	"store_code", "date",
	"net_revenue", "gross_sales", "tickets", "items", "discount", "loyalty_discount",
	"cost_real", "profit_real", "cost", "profit", "returns_net", "returns_tickets", "weight_sold",
	"basket", "items_per_ticket", "margin", "margin_real", "discount_rate",
}

// FileHistoryRepository stores the history table as a gzip-compressed CSV file.
type FileHistoryRepository struct {
	path string
}

// NewFileHistoryRepository creates a repository for the table at path.
func NewFileHistoryRepository(path string) *FileHistoryRepository {
	return &FileHistoryRepository{path: path}
}

// Load reads the table. A missing or empty file yields an empty table.
func (r *FileHistoryRepository) Load(ctx context.Context) ([]domain.DailyMetricRecord, error) {
	file, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fail("load", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		return nil, nil
	}

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, r.fail("load", err)
	}
	defer zr.Close()

	reader := csv.NewReader(zr)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fail("load", err)
	}
	if len(header) != len(historyColumns) {
		return nil, r.fail("load", fmt.Errorf("unexpected header with %d columns", len(header)))
	}

	var records []domain.DailyMetricRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, r.fail("load", err)
		}
		rec, err := decodeHistoryRow(row)
		if err != nil {
			return nil, r.fail("load", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save writes the whole table to a temp file and renames it over the old one.
func (r *FileHistoryRepository) Save(ctx context.Context, records []domain.DailyMetricRecord) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return r.fail("save", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return r.fail("save", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	w := csv.NewWriter(zw)
	if err := w.Write(historyColumns); err != nil {
		tmp.Close()
		return r.fail("save", err)
	}
	for _, rec := range records {
		if err := w.Write(encodeHistoryRow(rec)); err != nil {
			tmp.Close()
			return r.fail("save", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return r.fail("save", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return r.fail("save", err)
	}
	if err := tmp.Close(); err != nil {
		return r.fail("save", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return r.fail("save", err)
	}
	return nil
}

func (r *FileHistoryRepository) fail(op string, err error) error {
	return &domain.PersistenceError{Op: op, Resource: "history " + r.path, Cause: err}
}

func historyValues(rec *domain.DailyMetricRecord) []*float64 {
	return []*float64{
		&rec.NetRevenue, &rec.GrossSales, &rec.Tickets, &rec.Items, &rec.Discount, &rec.LoyaltyDiscount,
		&rec.CostReal, &rec.ProfitReal, &rec.Cost, &rec.Profit, &rec.ReturnsNet, &rec.ReturnsTickets, &rec.WeightSold,
		&rec.Basket, &rec.ItemsPerTicket, &rec.Margin, &rec.MarginReal, &rec.DiscountRate,
	}
}

func encodeHistoryRow(rec domain.DailyMetricRecord) []string {
	row := []string{rec.StoreCode, rec.Date.Format(time.DateOnly)}
	for _, v := range historyValues(&rec) {
		row = append(row, strconv.FormatFloat(*v, 'g', -1, 64))
	}
	return row
}

func decodeHistoryRow(row []string) (domain.DailyMetricRecord, error) {
	var rec domain.DailyMetricRecord
	if len(row) != len(historyColumns) {
		return rec, fmt.Errorf("row has %d fields, want %d", len(row), len(historyColumns))
	}

	rec.StoreCode = row[0]
	date, err := time.Parse(time.DateOnly, row[1])
	if err != nil {
		return rec, fmt.Errorf("could not parse date '%s': %w", row[1], err)
	}
	rec.Date = date

	for i, dst := range historyValues(&rec) {
		raw := row[i+2]
		if raw == "" {
			continue
		}
		if *dst, err = strconv.ParseFloat(raw, 64); err != nil {
			return rec, fmt.Errorf("could not parse %s '%s': %w", historyColumns[i+2], raw, err)
		}
	}
	return rec, nil
}
