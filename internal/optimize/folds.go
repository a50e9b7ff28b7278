package optimize

import (
	"github.com/quanthive/quanthive/internal/market"
)

// Fold is one expanding walk-forward split over a specialist's frame:
// train on [0, TrainEnd), validate on [TrainEnd, ValEnd). Boundaries sit on
// regime transitions so validation windows never straddle a market change
// the training data has not seen the start of.
type Fold struct {
	TrainEnd int
	ValEnd   int
}

// FoldPlan carries the accepted folds plus the count of candidate splits
// rejected for being too thin.
type FoldPlan struct {
	Folds   []Fold
	Skipped int
}

const (
	minFoldTrainRows = 500
	minFoldValRows   = 100
)

// PlanFolds derives expanding folds from the frame's regime transitions and
// time gaps. A frame filtered down to one regime set still carries implicit
// boundaries wherever bars were excised; those show up as timestamp jumps
// and count as transitions too.
func PlanFolds(frame *market.Frame) FoldPlan {
	n := frame.Len()
	boundaries := transitionBoundaries(frame)

	var plan FoldPlan
	for k, b := range boundaries {
		valEnd := n
		if k+1 < len(boundaries) {
			valEnd = boundaries[k+1]
		}
		if b < minFoldTrainRows || valEnd-b < minFoldValRows {
			plan.Skipped++
			continue
		}
		plan.Folds = append(plan.Folds, Fold{TrainEnd: b, ValEnd: valEnd})
	}
	return plan
}

// transitionBoundaries returns the bar indices opening a new regime segment,
// excluding index zero.
func transitionBoundaries(frame *market.Frame) []int {
	n := frame.Len()
	if n < 2 {
		return nil
	}
	interval := frame.BarInterval()

	var out []int
	for i := 1; i < n; i++ {
		if frame.Regimes[i] != frame.Regimes[i-1] {
			out = append(out, i)
			continue
		}
		if interval > 0 && frame.Timestamps[i].Sub(frame.Timestamps[i-1]) > interval {
			out = append(out, i)
		}
	}
	return out
}

// QuickPlan keeps only the last fold, for fast revalidation runs that only
// care about the most recent window.
func QuickPlan(plan FoldPlan) FoldPlan {
	if len(plan.Folds) <= 1 {
		return plan
	}
	return FoldPlan{
		Folds:   plan.Folds[len(plan.Folds)-1:],
		Skipped: plan.Skipped,
	}
}
