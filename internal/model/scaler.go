package model

import (
	"fmt"
	"math"
)

// Scaler standardizes features to zero mean and unit variance. Fitted on the
// training split only; the simulator reuses the fitted statistics for every
// inference row.
type Scaler struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Std          []float64 `json:"std"`
}

// FitScaler computes per-column statistics over row-major samples.
func FitScaler(rows [][]float64, featureNames []string) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on zero rows")
	}
	dim := len(rows[0])
	if dim != len(featureNames) {
		return nil, fmt.Errorf("scaler dimension mismatch: %d columns, %d names", dim, len(featureNames))
	}

	mean := make([]float64, dim)
	for _, row := range rows {
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(rows))
	for j := range mean {
		mean[j] /= n
	}

	std := make([]float64, dim)
	for _, row := range rows {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] < 1e-12 {
			std[j] = 1 // constant column: pass through centered
		}
	}

	return &Scaler{FeatureNames: featureNames, Mean: mean, Std: std}, nil
}

// Transform standardizes rows in place-compatible fashion, returning new
// slices and leaving the input untouched.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled := make([]float64, len(row))
		if err := s.TransformRow(row, scaled); err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformRow standardizes a single row into dst without allocating.
func (s *Scaler) TransformRow(row, dst []float64) error {
	if len(row) != len(s.Mean) {
		return fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(row))
	}
	for j, v := range row {
		dst[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return nil
}

// Dim returns the fitted feature count.
func (s *Scaler) Dim() int {
	return len(s.Mean)
}
