package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"retail-forecaster/internal/domain"
	"retail-forecaster/internal/forecast"
)

const (
	modelFile     = "model.json"
	modelMetaFile = "model_meta.json"
)

// FileModelRepository stores the trained bundle as JSON in a model directory.
type FileModelRepository struct {
	dir string
}

// NewFileModelRepository creates a repository rooted at dir.
func NewFileModelRepository(dir string) *FileModelRepository {
	return &FileModelRepository{dir: dir}
}

// LoadBundle returns forecast.ErrNoModel when nothing was saved yet. A corrupt file is
// reported as a *domain.PersistenceError.
func (r *FileModelRepository) LoadBundle(ctx context.Context) (*forecast.Bundle, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, modelFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, forecast.ErrNoModel
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Resource: "model", Cause: err}
	}

	var bundle forecast.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, &domain.PersistenceError{Op: "load", Resource: "model", Cause: fmt.Errorf("decode %s: %w", modelFile, err)}
	}
	return &bundle, nil
}

// SaveBundle writes model.json and model_meta.json, each atomically.
func (r *FileModelRepository) SaveBundle(ctx context.Context, bundle *forecast.Bundle) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir %s: %w", r.dir, err)
	}
	if err := writeJSONAtomic(filepath.Join(r.dir, modelFile), bundle); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(r.dir, modelMetaFile), bundle.Meta)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// MemoryModelRepository keeps the bundle in memory.
type MemoryModelRepository struct {
	bundle *forecast.Bundle
	Saves  int
}

// NewMemoryModelRepository creates an empty repository.
func NewMemoryModelRepository() *MemoryModelRepository {
	return &MemoryModelRepository{}
}

func (r *MemoryModelRepository) LoadBundle(ctx context.Context) (*forecast.Bundle, error) {
	if r.bundle == nil {
		return nil, forecast.ErrNoModel
	}
	return r.bundle, nil
}

func (r *MemoryModelRepository) SaveBundle(ctx context.Context, bundle *forecast.Bundle) error {
	r.bundle = bundle
	r.Saves++
	return nil
}
