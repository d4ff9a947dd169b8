package forecast

import (
	"context"
	"errors"

	"retail-forecaster/internal/domain"
)

// ErrNoModel is returned by a ModelRepository that holds no bundle yet.
var ErrNoModel = errors.New("no persisted model")

//go:generate mockgen -destination=mocks/mock_model_repository.go -source=bundle.go

// ModelRepository persists trained bundles between runs.
type ModelRepository interface {
	LoadBundle(ctx context.Context) (*Bundle, error)
	SaveBundle(ctx context.Context, bundle *Bundle) error
}

// QuantilePair holds the lower and upper band models of one target.
type QuantilePair struct {
	P10 *LinearModel `json:"p10"`
	P90 *LinearModel `json:"p90"`
}

// Bundle is everything needed to predict without retraining.
type Bundle struct {
	Meta         domain.ModelMeta        `json:"meta"`
	FeatureNames []string                `json:"feature_names"`
	Encoder      *Encoder                `json:"encoder"`
	Point        map[string]*LinearModel `json:"point"`
	Quantiles    map[string]QuantilePair `json:"quantiles,omitempty"`
}

// Compatible reports whether the bundle matches the current feature schema and target set.
func (b *Bundle) Compatible() bool {
	if b == nil || b.Encoder == nil {
		return false
	}
	names := FeatureNames()
	if len(b.FeatureNames) != len(names) || len(b.Encoder.Names) != len(names) {
		return false
	}
	for i, n := range names {
		if b.FeatureNames[i] != n || b.Encoder.Names[i] != n {
			return false
		}
	}
	if len(b.Encoder.Medians) != len(names) || len(b.Encoder.Means) != len(names) || len(b.Encoder.Scales) != len(names) {
		return false
	}
	width := b.Encoder.Width()
	for _, target := range Targets {
		m, ok := b.Point[target]
		if !ok || !m.fits(width) {
			return false
		}
	}
	// Quantile models are optional, but a present one must match the encoder.
	for _, pair := range b.Quantiles {
		if !pair.P10.fits(width) || !pair.P90.fits(width) {
			return false
		}
	}
	return true
}
