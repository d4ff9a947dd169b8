package forecast

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Encoder maps snapshots to model inputs: median-imputed, standardized numeric features
// followed by a store one-hot block and a 12-column month one-hot block.
type Encoder struct {
	Names   []string  `json:"names"`
	Medians []float64 `json:"medians"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
	Stores  []string  `json:"stores"`
}

// FitEncoder learns imputation and scaling statistics from snaps.
func FitEncoder(snaps []FeatureSnapshot) *Encoder {
	names := FeatureNames()
	p := len(names)
	e := &Encoder{
		Names:   names,
		Medians: make([]float64, p),
		Means:   make([]float64, p),
		Scales:  make([]float64, p),
	}

	rows := make([][]float64, len(snaps))
	stores := make(map[string]bool)
	for i, s := range snaps {
		rows[i] = s.Numeric()
		stores[s.StoreCode] = true
	}
	for store := range stores {
		e.Stores = append(e.Stores, store)
	}
	sort.Strings(e.Stores)

	col := make([]float64, 0, len(rows))
	for j := 0; j < p; j++ {
		col = col[:0]
		for _, r := range rows {
			if finite(r[j]) {
				col = append(col, r[j])
			}
		}
		if len(col) > 0 {
			sort.Float64s(col)
			e.Medians[j] = stat.Quantile(0.5, stat.Empirical, col, nil)
		}

		col = col[:0]
		for _, r := range rows {
			col = append(col, e.impute(j, r[j]))
		}
		mean, std := 0.0, 0.0
		if len(col) > 0 {
			mean = stat.Mean(col, nil)
		}
		if len(col) > 1 {
			std = stat.StdDev(col, nil)
		}
		e.Means[j] = mean
		e.Scales[j] = 1
		if finite(std) && std > 0 {
			e.Scales[j] = std
		}
	}
	return e
}

// Width is the length of Transform's output.
func (e *Encoder) Width() int {
	return len(e.Names) + len(e.Stores) + 12
}

// Transform encodes one snapshot. Stores unseen at fit time get an all-zero store block.
func (e *Encoder) Transform(s FeatureSnapshot) []float64 {
	p := len(e.Names)
	out := make([]float64, e.Width())
	for j, v := range s.Numeric() {
		if j >= p {
			break
		}
		out[j] = (e.impute(j, v) - e.Means[j]) / e.Scales[j]
	}
	if i := sort.SearchStrings(e.Stores, s.StoreCode); i < len(e.Stores) && e.Stores[i] == s.StoreCode {
		out[p+i] = 1
	}
	if s.Month >= 1 && s.Month <= 12 {
		out[p+len(e.Stores)+s.Month-1] = 1
	}
	return out
}

// Matrix encodes snaps row by row.
func (e *Encoder) Matrix(snaps []FeatureSnapshot) *mat.Dense {
	w := e.Width()
	data := make([]float64, 0, len(snaps)*w)
	for _, s := range snaps {
		data = append(data, e.Transform(s)...)
	}
	return mat.NewDense(len(snaps), w, data)
}

func (e *Encoder) impute(j int, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return e.Medians[j]
	}
	return v
}
