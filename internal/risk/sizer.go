// Package risk maps model conviction and risk parameters into trade notionals.
package risk

import (
	"math"

	"github.com/quanthive/quanthive/internal/strategy"
)

// minViableOrderUSD is the exchange's practical minimum order size; capital
// or notionals at or below it produce no trade.
const minViableOrderUSD = 10.0

// Costs models the execution frictions applied to every fill.
type Costs struct {
	FeeRate      float64 `yaml:"fee_rate" validate:"gte=0"`
	SlippageRate float64 `yaml:"slippage_rate" validate:"gte=0"`
	TaxRate      float64 `yaml:"tax_rate" validate:"gte=0"`
}

// DefaultCosts reflects spot-market taker execution with a transaction tax.
func DefaultCosts() Costs {
	return Costs{
		FeeRate:      0.001,
		SlippageRate: 0.0005,
		TaxRate:      0.0038,
	}
}

// Sizer turns conviction above the confidence threshold into a notional,
// scaling aggression superlinearly with signal strength.
type Sizer struct {
	params strategy.Params
	costs  Costs
}

// NewSizer builds a sizer for one specialist's parameter set.
func NewSizer(params strategy.Params, costs Costs) *Sizer {
	return &Sizer{params: params, costs: costs}
}

// Decision is the outcome of sizing one prospective entry.
type Decision struct {
	NotionalUSD    float64 // trade size before frictions; zero means no trade
	EntryPrice     float64 // price after slippage
	TotalCostUSD   float64 // notional plus fees and tax, debited from capital
	SignalStrength float64
}

// Size computes the trade notional for a conviction reading against the
// current confidence threshold. A zero-notional decision means the entry is
// rejected.
func (s *Sizer) Size(conviction, threshold, price, availableCapital float64) Decision {
	strength := signalStrength(conviction, threshold)
	aggression := s.params.MinRiskScale +
		math.Pow(strength, s.params.AggressionExponent)*(s.params.MaxRiskScale-s.params.MinRiskScale)

	notional := availableCapital * s.params.BaseRiskPct * aggression
	entryPrice := price * (1 + s.costs.SlippageRate)
	totalCost := notional * (1 + s.costs.FeeRate + s.costs.TaxRate)

	if availableCapital <= minViableOrderUSD || notional <= minViableOrderUSD || totalCost > availableCapital {
		return Decision{EntryPrice: entryPrice, SignalStrength: strength}
	}

	return Decision{
		NotionalUSD:    notional,
		EntryPrice:     entryPrice,
		TotalCostUSD:   totalCost,
		SignalStrength: strength,
	}
}

// signalStrength maps conviction above the threshold into [0,1], guarding
// the division as the threshold approaches 1.
func signalStrength(conviction, threshold float64) float64 {
	denom := 1.0 - threshold
	if denom <= 0 {
		return 1.0
	}
	strength := (conviction - threshold) / denom
	if strength < 0 {
		return 0
	}
	if strength > 1 {
		return 1
	}
	return strength
}
