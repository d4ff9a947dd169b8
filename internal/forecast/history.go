// Package forecast turns the daily metrics history into month-end projections.
package forecast

import (
	"sort"
	"time"

	"retail-forecaster/internal/domain"
)

// History is a read-only (store_code, date) index over the history table.
type History struct {
	byStore map[string]map[time.Time]domain.DailyMetricRecord
	latest  time.Time
	rows    int
}

// NewHistory indexes records. Later duplicates of a key replace earlier ones.
func NewHistory(records []domain.DailyMetricRecord) *History {
	h := &History{byStore: make(map[string]map[time.Time]domain.DailyMetricRecord)}
	for _, rec := range records {
		day := domain.DateOnly(rec.Date)
		days, ok := h.byStore[rec.StoreCode]
		if !ok {
			days = make(map[time.Time]domain.DailyMetricRecord)
			h.byStore[rec.StoreCode] = days
		}
		if _, dup := days[day]; !dup {
			h.rows++
		}
		days[day] = rec
		if day.After(h.latest) {
			h.latest = day
		}
	}
	return h
}

// Get returns the record of store on day.
func (h *History) Get(store string, day time.Time) (domain.DailyMetricRecord, bool) {
	if h == nil {
		return domain.DailyMetricRecord{}, false
	}
	rec, ok := h.byStore[store][domain.DateOnly(day)]
	return rec, ok
}

// Stores returns every store code in the history, sorted.
func (h *History) Stores() []string {
	if h == nil {
		return nil
	}
	stores := make([]string, 0, len(h.byStore))
	for s := range h.byStore {
		stores = append(stores, s)
	}
	sort.Strings(stores)
	return stores
}

// Days returns the dates recorded for store, sorted ascending.
func (h *History) Days(store string) []time.Time {
	if h == nil {
		return nil
	}
	days := make([]time.Time, 0, len(h.byStore[store]))
	for d := range h.byStore[store] {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Latest returns the most recent date across all stores.
func (h *History) Latest() (time.Time, bool) {
	if h == nil || h.rows == 0 {
		return time.Time{}, false
	}
	return h.latest, true
}

// Len returns the number of indexed rows.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return h.rows
}

// sumRange adds up store's records over [from, to] inclusive and reports how many days had data.
func (h *History) sumRange(store string, from, to time.Time) (domain.DailyMetricRecord, int) {
	var sum domain.DailyMetricRecord
	n := 0
	for d := domain.DateOnly(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if rec, ok := h.Get(store, d); ok {
			sum.Add(rec)
			n++
		}
	}
	return sum, n
}
