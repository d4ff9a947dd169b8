package gateway

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"retail-forecaster/internal/domain"
)

// Column identifies a logical transaction field.
type Column string

const (
	ColDate            Column = "date"
	ColOrderID         Column = "order_id"
	ColProductName     Column = "product_name"
	ColCategory        Column = "category"
	ColNetSales        Column = "net_sales"
	ColGrossSales      Column = "gross_sales"
	ColQuantity        Column = "quantity"
	ColDiscount        Column = "discount"
	ColLoyaltyDiscount Column = "loyalty_discount"
	ColCost            Column = "cost"
	ColProfit          Column = "profit"
	ColReturnDate      Column = "return_date"
	ColWeightSold      Column = "weight_sold"
)

// HeaderSynonyms lists accepted header names per column, most preferred first.
// Matching ignores case and surrounding whitespace.
var HeaderSynonyms = map[Column][]string{
	ColDate:            {"Order Time", "Transaction Date", "Date", "Order Date", "date"},
	ColOrderID:         {"Order ID", "Receipt ID", "Ticket ID", "Transaction ID", "order_id"},
	ColProductName:     {"Product Name", "Product", "Item Name", "Item", "product_name"},
	ColCategory:        {"Category", "Product Category", "Item Category", "category"},
	ColNetSales:        {"Net Sales", "Net Revenue", "Net", "net_sales"},
	ColGrossSales:      {"Gross Sales", "Gross Revenue", "Gross", "gross_sales"},
	ColQuantity:        {"Quantity Sold", "Quantity", "Qty", "Units", "quantity"},
	ColDiscount:        {"Discounted Amount", "Discounts", "Discount", "discount"},
	ColLoyaltyDiscount: {"Loyalty as Discount", "Loyalty Discount", "Loyalty", "loyalty_discount"},
	ColCost:            {"Inventory Cost", "Cost", "COGS", "Unit Cost Total", "cost"},
	ColProfit:          {"Net Profit", "Profit", "Gross Profit", "profit"},
	ColReturnDate:      {"Return Date", "Returned At", "return_date"},
	ColWeightSold:      {"Weight Sold (g)", "Weight Sold", "Weight", "weight_sold"},
}

// RequiredColumns must be present in every export.
var RequiredColumns = []Column{ColDate, ColProductName, ColNetSales, ColCost}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
	"01/02/2006 15:04:05",
	"01/02/2006 03:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006",
}

// CSVTransactionRepository implements the TransactionRepository interface for CSV exports.
type CSVTransactionRepository struct {
	dir     string
	pattern string
}

// NewCSVTransactionRepository creates a new repository instance. pattern is a glob relative
// to dir in which {store} is replaced by the store code.
func NewCSVTransactionRepository(dir, pattern string) *CSVTransactionRepository {
	return &CSVTransactionRepository{dir: dir, pattern: pattern}
}

// GetTransactions reads and parses every export file of a store.
func (r *CSVTransactionRepository) GetTransactions(ctx context.Context, storeCode string) ([]domain.TransactionRow, error) {
	glob := filepath.Join(r.dir, strings.ReplaceAll(r.pattern, "{store}", storeCode))
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("invalid export pattern %s: %w", glob, err)
	}
	if len(paths) == 0 {
		return nil, &domain.DataGapError{StoreCode: storeCode, Path: glob}
	}
	sort.Strings(paths)

	var all []domain.TransactionRow
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := r.readFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (r *CSVTransactionRepository) readFile(path string) ([]domain.TransactionRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}

	cols, err := ResolveColumns(header, path)
	if err != nil {
		return nil, err
	}

	var transactions []domain.TransactionRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading record from %s: %w", path, err)
		}
		if isBlank(record) {
			continue
		}

		tx, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// ResolveColumns maps each logical column to its index in header, probing HeaderSynonyms in
// priority order. A missing required column yields a *domain.ColumnMissingError.
func ResolveColumns(header []string, path string) (map[Column]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := make(map[Column]int)
	for col, synonyms := range HeaderSynonyms {
		for _, name := range synonyms {
			if i, ok := index[normalizeHeader(name)]; ok {
				cols[col] = i
				break
			}
		}
	}

	for _, col := range RequiredColumns {
		if _, ok := cols[col]; !ok {
			return nil, &domain.ColumnMissingError{Column: string(col), Path: path, Synonyms: HeaderSynonyms[col]}
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[Column]int) (domain.TransactionRow, error) {
	field := func(c Column) string {
		i, ok := cols[c]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var tx domain.TransactionRow
	var err error

	if tx.Date, err = parseDate(field(ColDate)); err != nil {
		return tx, fmt.Errorf("could not parse date '%s': %w", field(ColDate), err)
	}
	tx.OrderID = field(ColOrderID)
	tx.ProductName = field(ColProductName)
	tx.Category = field(ColCategory)

	amounts := []struct {
		col Column
		dst *float64
	}{
		{ColNetSales, &tx.NetSales},
		{ColGrossSales, &tx.GrossSales},
		{ColQuantity, &tx.Quantity},
		{ColDiscount, &tx.Discount},
		{ColLoyaltyDiscount, &tx.LoyaltyDiscount},
		{ColCost, &tx.Cost},
		{ColWeightSold, &tx.WeightSold},
	}
	for _, a := range amounts {
		if *a.dst, err = parseAmount(field(a.col)); err != nil {
			return tx, fmt.Errorf("could not parse %s '%s': %w", a.col, field(a.col), err)
		}
	}

	if raw := field(ColProfit); raw != "" {
		profit, err := parseAmount(raw)
		if err != nil {
			return tx, fmt.Errorf("could not parse profit '%s': %w", raw, err)
		}
		tx.Profit = &profit
	}

	if raw := field(ColReturnDate); raw != "" {
		returned, err := parseDate(raw)
		if err != nil {
			return tx, fmt.Errorf("could not parse return date '%s': %w", raw, err)
		}
		tx.ReturnDate = &returned
	}

	return tx, nil
}

// parseAmount accepts plain numbers plus "$1,234.50" and accounting negatives "(12.00)".
// Blank cells are zero.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount %q is not a finite number", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
