package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitScaler_Standardizes(t *testing.T) {
	rows := [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
	}
	s, err := FitScaler(rows, []string{"a", "b"})
	require.NoError(t, err)

	assert.InDelta(t, 2, s.Mean[0], 1e-12)
	assert.InDelta(t, 20, s.Mean[1], 1e-12)

	scaled, err := s.Transform(rows)
	require.NoError(t, err)

	// Column means of the transformed data vanish.
	for j := 0; j < 2; j++ {
		var sum float64
		for _, row := range scaled {
			sum += row[j]
		}
		assert.InDelta(t, 0, sum, 1e-9, "column %d not centered", j)
	}
	// Input is left untouched.
	assert.Equal(t, 1.0, rows[0][0])
}

func TestFitScaler_ConstantColumnPassesThroughCentered(t *testing.T) {
	rows := [][]float64{{5, 1}, {5, 2}, {5, 3}}
	s, err := FitScaler(rows, []string{"const", "x"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, s.Std[0])
	dst := make([]float64, 2)
	require.NoError(t, s.TransformRow([]float64{5, 2}, dst))
	assert.Zero(t, dst[0])
}

func TestScaler_Errors(t *testing.T) {
	_, err := FitScaler(nil, nil)
	assert.Error(t, err)

	_, err = FitScaler([][]float64{{1, 2}}, []string{"only"})
	assert.Error(t, err)

	s := &Scaler{FeatureNames: []string{"a"}, Mean: []float64{0}, Std: []float64{1}}
	assert.Error(t, s.TransformRow([]float64{1, 2}, make([]float64, 2)))
	assert.Equal(t, 1, s.Dim())
}
