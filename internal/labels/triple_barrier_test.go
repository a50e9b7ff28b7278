package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel_ProfitTouchBeatsStopTouch(t *testing.T) {
	// Barriers at 102/98. The profit barrier is touched at j=2 (high=105)
	// before the stop condition at j=3 (low=95) is ever evaluated.
	closes := []float64{100, 100, 100, 100, 100}
	highs := []float64{100, 100, 105, 100, 100}
	lows := []float64{100, 100, 100, 95, 100}
	atr := []float64{1, 1, 1, 1, 1}

	lbls, err := Label(closes, highs, lows, atr, BarrierConfig{FuturePeriods: 3, ProfitMult: 2, StopMult: 2})
	require.NoError(t, err)
	assert.Equal(t, int8(1), lbls[0], "profit-first tie-break must hold")
}

func TestLabel_SameBarTieBreak(t *testing.T) {
	// Both barriers touched in the same future bar: profit wins.
	closes := []float64{100, 100, 100}
	highs := []float64{100, 103, 100}
	lows := []float64{100, 97, 100}
	atr := []float64{1, 1, 1}

	lbls, err := Label(closes, highs, lows, atr, BarrierConfig{FuturePeriods: 2, ProfitMult: 2, StopMult: 2})
	require.NoError(t, err)
	assert.Equal(t, int8(1), lbls[0])
}

func TestLabel_StopTouchFirstIsNegative(t *testing.T) {
	closes := []float64{100, 100, 100, 100}
	highs := []float64{100, 100, 110, 100}
	lows := []float64{100, 97, 100, 100}
	atr := []float64{1, 1, 1, 1}

	lbls, err := Label(closes, highs, lows, atr, BarrierConfig{FuturePeriods: 3, ProfitMult: 2, StopMult: 2})
	require.NoError(t, err)
	assert.Equal(t, int8(0), lbls[0], "stop touched at j=1 before the profit touch at j=2")
}

func TestLabel_TailStaysUnlabeled(t *testing.T) {
	n := 50
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	atr := make([]float64, n)
	for i := range closes {
		closes[i] = 100
		highs[i] = 1e9 // would touch any profit barrier if scanned
		lows[i] = 0
		atr[i] = 5
	}

	fp := 7
	lbls, err := Label(closes, highs, lows, atr, BarrierConfig{FuturePeriods: fp, ProfitMult: 1, StopMult: 1})
	require.NoError(t, err)

	for i := n - fp; i < n; i++ {
		assert.Equal(t, int8(0), lbls[i], "index %d is inside the unlabelable tail", i)
	}
	assert.Equal(t, n-fp, LabeledLen(n, fp))
}

func TestLabel_ZeroATRSkipped(t *testing.T) {
	closes := []float64{100, 100, 100, 100}
	highs := []float64{100, 200, 200, 200}
	lows := []float64{100, 0, 0, 0}
	atr := []float64{0, 1, 1, 1}

	lbls, err := Label(closes, highs, lows, atr, BarrierConfig{FuturePeriods: 2, ProfitMult: 2, StopMult: 2})
	require.NoError(t, err)
	assert.Equal(t, int8(0), lbls[0], "flat ATR leaves the bar neutral")
}

func TestLabel_NoTouchStaysNeutral(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100}
	highs := []float64{100.5, 100.5, 100.5, 100.5, 100.5}
	lows := []float64{99.5, 99.5, 99.5, 99.5, 99.5}
	atr := []float64{1, 1, 1, 1, 1}

	lbls, err := Label(closes, highs, lows, atr, BarrierConfig{FuturePeriods: 3, ProfitMult: 2, StopMult: 2})
	require.NoError(t, err)
	assert.Equal(t, int8(0), lbls[0])
}

func TestLabel_MismatchedLengths(t *testing.T) {
	_, err := Label([]float64{1, 2}, []float64{1}, []float64{1, 2}, []float64{1, 2},
		BarrierConfig{FuturePeriods: 1, ProfitMult: 1, StopMult: 1})
	assert.Error(t, err)
}

func TestLabeledLen_ShortSequence(t *testing.T) {
	assert.Equal(t, 0, LabeledLen(5, 10))
	assert.Equal(t, 0, LabeledLen(10, 10))
	assert.Equal(t, 1, LabeledLen(11, 10))
}

func TestPositiveCount(t *testing.T) {
	lbls := []int8{1, 0, 1, 1, 0, 1}
	assert.Equal(t, 3, PositiveCount(lbls, 4), "counts only the labeled prefix")
}
