package domain

import (
	"errors"
	"fmt"
)

// ErrNoTransactionData is returned when not a single store produced transaction rows.
var ErrNoTransactionData = errors.New("no transaction data for any store")

// DataGapError reports that no export exists for a store in the requested window.
type DataGapError struct {
	StoreCode string
	Path      string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("no export found for store %s (%s)", e.StoreCode, e.Path)
}

// ColumnMissingError reports that a required column is absent from an export.
type ColumnMissingError struct {
	Column   string
	Path     string
	Synonyms []string
}

func (e *ColumnMissingError) Error() string {
	return fmt.Sprintf("required column %q missing from %s (accepted headers: %v)", e.Column, e.Path, e.Synonyms)
}

// ModelTrainingError wraps a failure while fitting forecast models.
type ModelTrainingError struct {
	Target string
	Cause  error
}

func (e *ModelTrainingError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("model training failed: %v", e.Cause)
	}
	return fmt.Sprintf("model training failed for %s: %v", e.Target, e.Cause)
}

func (e *ModelTrainingError) Unwrap() error {
	return e.Cause
}

// PersistenceError wraps a failure reading or writing persisted state.
type PersistenceError struct {
	Op       string // load, save
	Resource string // history, model
	Cause    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
