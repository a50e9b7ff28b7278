package optimize

import (
	"math"
	"sort"
)

// Prune reasons reported by trial evaluation. Stable strings: they key the
// coordinator's tally and the prune-reason metric labels.
const (
	PruneNoFolds      = "no_viable_folds"
	PruneFewTrades    = "insufficient_trades"
	PruneScoreNaN     = "score_nan"
	PruneLowScore     = "score_below_floor"
	PruneTrainFailure = "training_failed"
)

const (
	// minTrialTrades is the floor under which fold results are statistical
	// noise rather than a strategy.
	minTrialTrades = 10
	// scoreFloor prunes candidates whose composite rounds to useless.
	scoreFloor = 0.1
	// tradeDamping is the trade count at which the activity damper saturates.
	tradeDamping = 50.0
)

// foldOutcome is the per-fold validation summary the scorer aggregates.
type foldOutcome struct {
	Sortino      float64
	ProfitFactor float64
	Annualized   float64
	Trades       int
}

// compositeScore blends the median fold statistics, weighted toward
// downside-adjusted return, then damps thin trade counts so a lucky
// two-trade fold cannot outrank a consistently active candidate.
func compositeScore(outcomes []foldOutcome) (score float64, totalTrades int) {
	sortinos := make([]float64, len(outcomes))
	pfs := make([]float64, len(outcomes))
	annuals := make([]float64, len(outcomes))
	for i, o := range outcomes {
		sortinos[i] = o.Sortino
		pfs[i] = o.ProfitFactor
		annuals[i] = o.Annualized
		totalTrades += o.Trades
	}

	raw := 0.5*median(sortinos) + 0.4*median(pfs) + 0.1*median(annuals)
	damp := math.Log1p(float64(totalTrades)) / math.Log1p(tradeDamping)
	if damp > 1 {
		damp = 1
	}
	return raw * damp, totalTrades
}

// median returns the middle value; even-length inputs average the middle
// pair. Empty input yields NaN so the caller's NaN prune path catches it.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
