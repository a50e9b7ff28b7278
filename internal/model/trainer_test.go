package model

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthive/quanthive/internal/labels"
	"github.com/quanthive/quanthive/internal/market"
	"github.com/quanthive/quanthive/internal/strategy"
)

// walkFrame builds a drifting random-walk frame whose barrier touches yield
// both label classes, with atr plus two throwaway feature columns.
func walkFrame(n int, seed int64) *market.Frame {
	rng := rand.New(rand.NewSource(seed))
	f := market.NewFrame(n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	price := 100.0
	atr := make([]float64, n)
	mom := make([]float64, n)
	noise := make([]float64, n)
	for i := 0; i < n; i++ {
		price += 0.05 + rng.NormFloat64()
		f.Timestamps = append(f.Timestamps, start.Add(time.Duration(i)*time.Hour))
		f.Open = append(f.Open, price)
		f.High = append(f.High, price+0.6)
		f.Low = append(f.Low, price-0.6)
		f.Close = append(f.Close, price)
		f.Volume = append(f.Volume, 100)
		f.Regimes = append(f.Regimes, market.BullQuiet)
		atr[i] = 1
		mom[i] = rng.NormFloat64()
		noise[i] = rng.NormFloat64()
	}
	f.Features["atr"] = atr
	f.Features["mom_5"] = mom
	f.Features["noise"] = noise
	return f
}

func flatFrame(n int) *market.Frame {
	f := walkFrame(n, 1)
	for i := range f.Close {
		f.Close[i] = 100
		f.High[i] = 100
		f.Low[i] = 100
	}
	return f
}

func testTrainer(topK int) *Trainer {
	return NewTrainer(TrainerConfig{TopKFeatures: topK, ATRFeature: "atr"}, zerolog.Nop())
}

func TestTrainer_TrainFitsSpecialist(t *testing.T) {
	frame := walkFrame(800, 17)
	params := strategy.Default()
	hp := DefaultHyperParams()
	hp.NEstimators = 40

	trained, err := testTrainer(2).Train(frame, params, hp, []string{"mom_5", "noise", "atr"})
	require.NoError(t, err)

	assert.NotNil(t, trained.Model)
	assert.LessOrEqual(t, len(trained.FeatureNames), 2)
	assert.Equal(t, len(trained.FeatureNames), trained.Scaler.Dim())

	// The fitted scaler and model must agree on the input dimension.
	row := make([]float64, trained.Scaler.Dim())
	_, err = trained.Model.PredictProba(row)
	assert.NoError(t, err)
}

func TestTrainer_RejectsShortFrames(t *testing.T) {
	_, err := testTrainer(2).Train(walkFrame(100, 3), strategy.Default(), DefaultHyperParams(), []string{"mom_5"})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainer_RejectsWhenLabeledTailTooShort(t *testing.T) {
	// 510 raw rows minus the 30-bar unlabeled tail leaves 480, under the floor.
	params := strategy.Default()
	require.Equal(t, 30, params.Barriers.FuturePeriods)

	_, err := testTrainer(2).Train(walkFrame(510, 3), params, DefaultHyperParams(), []string{"mom_5"})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainer_RejectsDegenerateLabels(t *testing.T) {
	// Flat prices never touch a barrier, so every label stays negative.
	_, err := testTrainer(2).Train(flatFrame(800), strategy.Default(), DefaultHyperParams(), []string{"mom_5"})
	assert.ErrorIs(t, err, ErrDegenerateLabels)
}

func TestTrainer_RejectsEmptyFeatureSpace(t *testing.T) {
	_, err := testTrainer(2).Train(walkFrame(800, 17), strategy.Default(), DefaultHyperParams(), []string{"absent_a", "absent_b"})
	assert.Error(t, err)
}

func TestTrainer_DropsAbsentCandidates(t *testing.T) {
	frame := walkFrame(800, 17)
	hp := DefaultHyperParams()
	hp.NEstimators = 40

	trained, err := testTrainer(3).Train(frame, strategy.Default(), hp, []string{"mom_5", "ghost", "noise"})
	require.NoError(t, err)
	assert.NotContains(t, trained.FeatureNames, "ghost")
}

func TestTrainer_MatchesStandaloneLabeling(t *testing.T) {
	frame := walkFrame(800, 17)
	params := strategy.Default()

	atr := frame.Features["atr"]
	lbls, err := labels.Label(frame.Close, frame.High, frame.Low, atr, params.Barriers)
	require.NoError(t, err)

	labeled := labels.LabeledLen(frame.Len(), params.Barriers.FuturePeriods)
	positives := labels.PositiveCount(lbls, labeled)
	require.GreaterOrEqual(t, positives, 15, "walk fixture must produce enough positive labels")
}
