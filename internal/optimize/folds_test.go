package optimize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthive/quanthive/internal/market"
)

type seg struct {
	Regime market.Regime
	Bars   int
}

// segmentFrame builds an hourly frame from (regime, length) segments.
func segmentFrame(segments ...seg) *market.Frame {
	total := 0
	for _, s := range segments {
		total += s.Bars
	}
	f := market.NewFrame(total)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	for _, s := range segments {
		for k := 0; k < s.Bars; k++ {
			f.Timestamps = append(f.Timestamps, start.Add(time.Duration(i)*time.Hour))
			f.Open = append(f.Open, 100)
			f.High = append(f.High, 100)
			f.Low = append(f.Low, 100)
			f.Close = append(f.Close, 100)
			f.Volume = append(f.Volume, 100)
			f.Regimes = append(f.Regimes, s.Regime)
			i++
		}
	}
	return f
}

func TestPlanFolds_ExpandsAtRegimeTransitions(t *testing.T) {
	frame := segmentFrame(
		seg{market.BullQuiet, 600},
		seg{market.BearQuiet, 200},
		seg{market.BullQuiet, 50},
	)

	plan := PlanFolds(frame)
	require.Len(t, plan.Folds, 1)
	assert.Equal(t, Fold{TrainEnd: 600, ValEnd: 800}, plan.Folds[0])
	// The trailing 50-bar segment is under the validation floor.
	assert.Equal(t, 1, plan.Skipped)
}

func TestPlanFolds_ShortHistoryYieldsNothing(t *testing.T) {
	frame := segmentFrame(
		seg{market.BullQuiet, 250},
		seg{market.BearQuiet, 150},
	)

	plan := PlanFolds(frame)
	assert.Empty(t, plan.Folds, "250 training rows is under the floor")
	assert.Equal(t, 1, plan.Skipped)
}

func TestPlanFolds_TimestampGapCountsAsTransition(t *testing.T) {
	// A frame filtered to one regime keeps gaps where other regimes were
	// excised; those gaps must still open folds.
	frame := segmentFrame(seg{market.BullQuiet, 800})
	for i := 600; i < 800; i++ {
		frame.Timestamps[i] = frame.Timestamps[i].Add(72 * time.Hour)
	}

	plan := PlanFolds(frame)
	require.Len(t, plan.Folds, 1)
	assert.Equal(t, 600, plan.Folds[0].TrainEnd)
}

func TestQuickPlan_KeepsOnlyLastFold(t *testing.T) {
	plan := FoldPlan{
		Folds:   []Fold{{TrainEnd: 500, ValEnd: 700}, {TrainEnd: 700, ValEnd: 900}},
		Skipped: 2,
	}
	quick := QuickPlan(plan)
	require.Len(t, quick.Folds, 1)
	assert.Equal(t, 700, quick.Folds[0].TrainEnd)
	assert.Equal(t, 2, quick.Skipped)
}
