package optimize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
	assert.True(t, math.IsNaN(median(nil)))

	// Input must not be reordered.
	in := []float64{3, 1, 2}
	median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestCompositeScore_Weights(t *testing.T) {
	outcomes := []foldOutcome{{Sortino: 2, ProfitFactor: 1.5, Annualized: 0.1, Trades: 50}}
	score, trades := compositeScore(outcomes)

	assert.Equal(t, 50, trades)
	// 0.5*2 + 0.4*1.5 + 0.1*0.1, with the damper saturated at 50 trades.
	assert.InDelta(t, 1.61, score, 1e-12)
}

func TestCompositeScore_DampsThinTradeCounts(t *testing.T) {
	busy := []foldOutcome{{Sortino: 2, ProfitFactor: 1.5, Annualized: 0.1, Trades: 50}}
	thin := []foldOutcome{{Sortino: 2, ProfitFactor: 1.5, Annualized: 0.1, Trades: 4}}

	busyScore, _ := compositeScore(busy)
	thinScore, _ := compositeScore(thin)
	assert.Less(t, thinScore, busyScore)

	idle := []foldOutcome{{Sortino: 2, ProfitFactor: 1.5, Annualized: 0.1, Trades: 0}}
	idleScore, _ := compositeScore(idle)
	assert.Zero(t, idleScore)
}

func TestCompositeScore_DamperNeverAmplifies(t *testing.T) {
	flood := []foldOutcome{{Sortino: 1, ProfitFactor: 1, Annualized: 0, Trades: 10000}}
	score, _ := compositeScore(flood)
	assert.InDelta(t, 0.9, score, 1e-12, "damper is capped at 1")
}

func TestCompositeScore_MedianAcrossFolds(t *testing.T) {
	outcomes := []foldOutcome{
		{Sortino: 1, ProfitFactor: 1, Annualized: 0, Trades: 20},
		{Sortino: 100, ProfitFactor: 100, Annualized: 5, Trades: 20},
		{Sortino: 2, ProfitFactor: 2, Annualized: 0.1, Trades: 20},
	}
	score, trades := compositeScore(outcomes)

	assert.Equal(t, 60, trades)
	// One outlier fold must not dominate: medians are 2, 2, 0.1.
	assert.InDelta(t, 0.5*2+0.4*2+0.1*0.1, score, 1e-12)
}
