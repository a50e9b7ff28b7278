// Package strategy defines the immutable per-specialist operating parameters
// produced by an optimization trial and persisted with the trained artifact.
package strategy

import (
	"fmt"

	"github.com/quanthive/quanthive/internal/confidence"
	"github.com/quanthive/quanthive/internal/labels"
)

// Params is the full set of strategy knobs one trial evaluates. A value is
// built once per trial, validated, and never mutated afterwards.
type Params struct {
	// Labeling barriers.
	Barriers labels.BarrierConfig `json:"barriers" yaml:"barriers"`

	// Exit management.
	ProfitThreshold  float64 `json:"profit_threshold" yaml:"profit_threshold" validate:"gt=0"`
	StopLossATRMult  float64 `json:"stop_loss_atr_mult" yaml:"stop_loss_atr_mult" validate:"gt=0"`
	TrailingATRMult  float64 `json:"trailing_atr_mult" yaml:"trailing_atr_mult" validate:"gt=0"`
	TimeLimitCandles int     `json:"time_limit_candles" yaml:"time_limit_candles" validate:"gt=0"`

	// Position sizing.
	BaseRiskPct        float64 `json:"base_risk_pct" yaml:"base_risk_pct" validate:"gt=0,lte=1"`
	AggressionExponent float64 `json:"aggression_exponent" yaml:"aggression_exponent" validate:"gt=0"`
	MinRiskScale       float64 `json:"min_risk_scale" yaml:"min_risk_scale" validate:"gt=0"`
	MaxRiskScale       float64 `json:"max_risk_scale" yaml:"max_risk_scale" validate:"gt=0"`

	// Adaptive confidence.
	Confidence confidence.Config `json:"confidence" yaml:"confidence"`

	// Treasury skimming.
	TreasuryAllocationPct float64 `json:"treasury_allocation_pct" yaml:"treasury_allocation_pct" validate:"gte=0,lte=1"`
}

// Default returns the parameter set used outside optimization runs; the
// values match the midpoints of the search space.
func Default() Params {
	return Params{
		Barriers: labels.BarrierConfig{
			FuturePeriods: 30,
			ProfitMult:    2.0,
			StopMult:      2.0,
		},
		ProfitThreshold:       0.015,
		StopLossATRMult:       2.5,
		TrailingATRMult:       1.5,
		TimeLimitCandles:      240,
		BaseRiskPct:           0.05,
		AggressionExponent:    2.0,
		MinRiskScale:          0.5,
		MaxRiskScale:          3.0,
		Confidence:            confidence.DefaultConfig(),
		TreasuryAllocationPct: 0.20,
	}
}

// Validate rejects parameter combinations the simulator cannot honor.
func (p Params) Validate() error {
	if p.Barriers.FuturePeriods <= 0 {
		return fmt.Errorf("future periods must be positive, got %d", p.Barriers.FuturePeriods)
	}
	if p.MinRiskScale > p.MaxRiskScale {
		return fmt.Errorf("min risk scale %.3f exceeds max risk scale %.3f", p.MinRiskScale, p.MaxRiskScale)
	}
	if err := p.Confidence.Validate(); err != nil {
		return err
	}
	if p.TreasuryAllocationPct < 0 || p.TreasuryAllocationPct > 1 {
		return fmt.Errorf("treasury allocation %.3f outside [0,1]", p.TreasuryAllocationPct)
	}
	return nil
}
