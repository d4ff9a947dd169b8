package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	errNoSamples    = errors.New("no training samples")
	errNotPosDef    = errors.New("normal equations are not positive definite")
	errNonFinite    = errors.New("fitted coefficients are not finite")
	errSizeMismatch = errors.New("feature and target sizes differ")
)

const (
	quantileIterations = 50
	quantileTolerance  = 1e-6
	// minRidge keeps the system solvable when one-hot blocks are collinear with the intercept.
	minRidge = 1e-6
)

// LinearModel is y = Intercept + Coef . x.
type LinearModel struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// Predict evaluates the model. A width mismatch yields NaN.
func (m *LinearModel) Predict(x []float64) float64 {
	if m == nil || len(x) != len(m.Coef) {
		return math.NaN()
	}
	y := m.Intercept
	for i, c := range m.Coef {
		y += c * x[i]
	}
	return y
}

func (m *LinearModel) fits(width int) bool {
	return m != nil && len(m.Coef) == width
}

// FitRidge fits an L2-penalized least-squares model. The intercept is not penalized.
func FitRidge(x *mat.Dense, y []float64, lambda float64) (*LinearModel, error) {
	design, err := withIntercept(x, y)
	if err != nil {
		return nil, err
	}
	beta, err := solveNormal(design, y, nil, lambda)
	if err != nil {
		return nil, err
	}
	return toModel(beta)
}

// FitQuantile fits a linear quantile regression for tau in (0, 1) by iteratively reweighted
// least squares, starting from the ridge solution.
func FitQuantile(x *mat.Dense, y []float64, tau, lambda float64) (*LinearModel, error) {
	if tau <= 0 || tau >= 1 {
		return nil, fmt.Errorf("quantile %v out of range", tau)
	}
	design, err := withIntercept(x, y)
	if err != nil {
		return nil, err
	}
	beta, err := solveNormal(design, y, nil, lambda)
	if err != nil {
		return nil, err
	}

	n, _ := design.Dims()
	scale := 0.0
	for _, v := range y {
		scale += math.Abs(v)
	}
	eps := 1e-6 * math.Max(1, scale/float64(n))

	w := make([]float64, n)
	var fitted mat.VecDense
	for iter := 0; iter < quantileIterations; iter++ {
		fitted.MulVec(design, beta)
		for i := 0; i < n; i++ {
			r := y[i] - fitted.AtVec(i)
			abs := math.Max(math.Abs(r), eps)
			if r >= 0 {
				w[i] = tau / abs
			} else {
				w[i] = (1 - tau) / abs
			}
		}
		next, err := solveNormal(design, y, w, lambda)
		if err != nil {
			return nil, err
		}

		var diff mat.VecDense
		diff.SubVec(next, beta)
		beta = next
		if mat.Norm(&diff, 2) <= quantileTolerance*math.Max(1, mat.Norm(beta, 2)) {
			break
		}
	}
	return toModel(beta)
}

func withIntercept(x *mat.Dense, y []float64) (*mat.Dense, error) {
	n, p := x.Dims()
	if n == 0 {
		return nil, errNoSamples
	}
	if n != len(y) {
		return nil, errSizeMismatch
	}
	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			design.Set(i, j+1, x.At(i, j))
		}
	}
	return design, nil
}

// solveNormal solves (A'WA + lambda*I') beta = A'Wy where I' skips the intercept column.
// A nil w means unit weights.
func solveNormal(a *mat.Dense, y, w []float64, lambda float64) (*mat.VecDense, error) {
	n, q := a.Dims()
	if lambda < minRidge {
		lambda = minRidge
	}
	aw := mat.DenseCopyOf(a)
	yw := mat.NewVecDense(n, append([]float64(nil), y...))
	if w != nil {
		for i := 0; i < n; i++ {
			s := math.Sqrt(w[i])
			row := aw.RawRowView(i)
			for j := range row {
				row[j] *= s
			}
			yw.SetVec(i, yw.AtVec(i)*s)
		}
	}

	var gram mat.SymDense
	gram.SymOuterK(1, aw.T())
	for j := 1; j < q; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lambda)
	}

	var rhs mat.VecDense
	rhs.MulVec(aw.T(), yw)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, errNotPosDef
	}
	beta := mat.NewVecDense(q, nil)
	if err := chol.SolveVecTo(beta, &rhs); err != nil {
		return nil, err
	}
	return beta, nil
}

func toModel(beta *mat.VecDense) (*LinearModel, error) {
	q := beta.Len()
	m := &LinearModel{Intercept: beta.AtVec(0), Coef: make([]float64, q-1)}
	if !finite(m.Intercept) {
		return nil, errNonFinite
	}
	for j := 1; j < q; j++ {
		m.Coef[j-1] = beta.AtVec(j)
		if !finite(m.Coef[j-1]) {
			return nil, errNonFinite
		}
	}
	return m, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
