package forecast

import "gonum.org/v1/gonum/mat"

// SetFitters replaces the regression routines of f. A nil argument keeps the current one.
func (f *MLForecaster) SetFitters(
	point func(x *mat.Dense, y []float64, lambda float64) (*LinearModel, error),
	quantile func(x *mat.Dense, y []float64, tau, lambda float64) (*LinearModel, error),
) {
	if point != nil {
		f.fitPoint = point
	}
	if quantile != nil {
		f.fitQuantile = quantile
	}
}
