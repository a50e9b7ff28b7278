package optimize

import (
	"math"
	"math/rand"

	"github.com/quanthive/quanthive/internal/confidence"
	"github.com/quanthive/quanthive/internal/labels"
	"github.com/quanthive/quanthive/internal/model"
	"github.com/quanthive/quanthive/internal/strategy"
)

// Candidate bundles one sampled point of the joint search space: strategy
// parameters and model hyperparameters are tuned together because the barrier
// geometry changes the label distribution the model trains on.
type Candidate struct {
	Params strategy.Params   `json:"params"`
	Hyper  model.HyperParams `json:"hyper"`
}

// Space draws random candidates. Ranges bracket the strategy defaults wide
// enough that the sampler can leave a bad default behind.
type Space struct {
	rng *rand.Rand
}

// NewSpace builds a sampler with its own deterministic stream. Each trial
// gets its own Space so parallel workers never contend on one rng.
func NewSpace(seed int64) *Space {
	return &Space{rng: rand.New(rand.NewSource(seed))}
}

// Sample draws one candidate.
func (s *Space) Sample() Candidate {
	p := strategy.Params{
		Barriers: labels.BarrierConfig{
			FuturePeriods: s.intRange(12, 48),
			ProfitMult:    s.floatRange(1.0, 4.0),
			StopMult:      s.floatRange(1.0, 4.0),
		},
		ProfitThreshold:    s.floatRange(0.008, 0.030),
		StopLossATRMult:    s.floatRange(1.5, 4.0),
		TrailingATRMult:    s.floatRange(0.8, 3.0),
		TimeLimitCandles:   s.intRange(48, 480),
		BaseRiskPct:        s.floatRange(0.02, 0.10),
		AggressionExponent: s.floatRange(1.0, 3.0),
		MinRiskScale:       s.floatRange(0.25, 1.0),
		MaxRiskScale:       s.floatRange(1.5, 4.0),
		Confidence: confidence.Config{
			Initial:        s.floatRange(0.55, 0.70),
			LearningRate:   s.floatRange(0.01, 0.10),
			Min:            0.505,
			Max:            0.85,
			WindowSize:     s.intRange(3, 10),
			PnLClamp:       0.02,
			ReactivityMult: s.floatRange(2.0, 8.0),
		},
		TreasuryAllocationPct: s.floatRange(0.10, 0.30),
	}

	h := model.HyperParams{
		NEstimators:     s.intRange(100, 500),
		LearningRate:    s.logRange(0.01, 0.2),
		MaxDepth:        s.intRange(3, 10),
		MaxLeaves:       s.intRange(15, 63),
		MinChildSamples: s.intRange(10, 50),
		FeatureFraction: s.floatRange(0.6, 1.0),
		LambdaL1:        s.floatRange(0, 1.0),
		LambdaL2:        s.floatRange(0, 5.0),
		Seed:            s.rng.Int63(),
	}

	return Candidate{Params: p, Hyper: h}
}

func (s *Space) floatRange(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// logRange samples uniformly in log space, matching how learning rates are
// usually tuned.
func (s *Space) logRange(lo, hi float64) float64 {
	return math.Exp(math.Log(lo) + s.rng.Float64()*(math.Log(hi)-math.Log(lo)))
}

func (s *Space) intRange(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}
