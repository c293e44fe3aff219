package classifier

import (
	"math"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

type vector = [models.NumFeatures]float64

// Scaler standardizes features to zero mean and unit variance using parameters fitted on
// the training set. A feature with zero variance keeps a scale of 1.
type Scaler struct {
	Mean  vector `json:"mean"`
	Scale vector `json:"scale"`
}

// FitScaler computes per-feature mean and population standard deviation. Columns whose
// plain sums overflow are refitted in scaled form, so any finite input yields a finite
// mean. The standard deviation is finite unless the column spans most of the float64 range.
func FitScaler(xs []vector) Scaler {
	var s Scaler
	n := float64(len(xs))
	if n == 0 {
		for j := range s.Scale {
			s.Scale[j] = 1
		}
		return s
	}
	for j := range s.Mean {
		s.Mean[j] = columnMean(xs, j)
		std := columnStd(xs, j, s.Mean[j])
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Scale[j] = std
	}
	return s
}

func columnMean(xs []vector, j int) float64 {
	n := float64(len(xs))
	var sum float64
	for _, x := range xs {
		sum += x[j]
	}
	if !math.IsInf(sum, 0) {
		return sum / n
	}
	var mean float64
	for _, x := range xs {
		mean += x[j] / n
	}
	return mean
}

func columnStd(xs []vector, j int, mean float64) float64 {
	n := float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x[j] - mean
		ss += d * d
	}
	if !math.IsInf(ss, 0) {
		return math.Sqrt(ss / n)
	}

	// Halved deviations cannot overflow; dividing by the largest one keeps every square
	// at or below 1.
	var peak float64
	for _, x := range xs {
		peak = math.Max(peak, math.Abs(x[j]/2-mean/2))
	}
	ss = 0
	for _, x := range xs {
		r := (x[j]/2 - mean/2) / peak
		ss += r * r
	}
	return 2 * peak * math.Sqrt(ss/n)
}

// Transform applies the fitted standardization to x.
func (s Scaler) Transform(x vector) vector {
	var out vector
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s Scaler) valid() bool {
	for j := range s.Scale {
		if s.Scale[j] <= 0 || math.IsNaN(s.Scale[j]) || math.IsInf(s.Scale[j], 0) ||
			math.IsNaN(s.Mean[j]) || math.IsInf(s.Mean[j], 0) {
			return false
		}
	}
	return true
}
