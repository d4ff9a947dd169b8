package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFitRidge_RecoversLinearRelation(t *testing.T) {
	n := 40
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := float64(i), float64((i*7)%13)
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y[i] = 3 + 2*a - b
	}

	m, err := FitRidge(x, y, 0)
	require.NoError(t, err)

	assert.InDelta(t, 3, m.Intercept, 1e-3)
	assert.InDelta(t, 2, m.Coef[0], 1e-3)
	assert.InDelta(t, -1, m.Coef[1], 1e-3)
	assert.InDelta(t, 3+2*5-1, m.Predict([]float64{5, 1}), 1e-3)
}

func TestFitRidge_Errors(t *testing.T) {
	_, err := FitRidge(mat.NewDense(2, 1, []float64{1, 2}), []float64{1}, 1)
	assert.ErrorIs(t, err, errSizeMismatch)

	assert.True(t, math.IsNaN((&LinearModel{Coef: []float64{1}}).Predict([]float64{1, 2})))
	var nilModel *LinearModel
	assert.True(t, math.IsNaN(nilModel.Predict(nil)))
}

func TestFitQuantile_BracketsTheMedian(t *testing.T) {
	n := 110
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i)
		x.Set(i, 0, v)
		y[i] = 10 + v + float64((i*7)%11) - 5
	}

	point, err := FitRidge(x, y, 1e-6)
	require.NoError(t, err)
	p10, err := FitQuantile(x, y, 0.1, 1e-6)
	require.NoError(t, err)
	p90, err := FitQuantile(x, y, 0.9, 1e-6)
	require.NoError(t, err)

	at := []float64{50}
	assert.Less(t, p10.Predict(at), point.Predict(at))
	assert.Greater(t, p90.Predict(at), point.Predict(at))
	assert.InDelta(t, 60-4, p10.Predict(at), 1.5)
	assert.InDelta(t, 60+4, p90.Predict(at), 1.5)
}

func TestFitQuantile_RejectsInvalidTau(t *testing.T) {
	x := mat.NewDense(1, 1, []float64{1})
	for _, tau := range []float64{0, 1, -0.5, 1.5} {
		_, err := FitQuantile(x, []float64{1}, tau, 1)
		assert.Error(t, err)
	}
}
