package labels

import "fmt"

// atrEpsilon guards against flat or warmup ATR values. Bars with ATR at or
// below this floor are left unlabeled (neutral).
const atrEpsilon = 1e-10

// BarrierConfig parameterizes the triple-barrier scan: a volatility-scaled
// profit barrier, a volatility-scaled stop barrier, and a time barrier of
// FuturePeriods bars.
type BarrierConfig struct {
	FuturePeriods int     `yaml:"future_periods" validate:"gt=0"`
	ProfitMult    float64 `yaml:"profit_mult" validate:"gt=0"`
	StopMult      float64 `yaml:"stop_mult" validate:"gt=0"`
}

// Label runs the triple-barrier scan over primitive arrays and returns one
// binary label per bar: 1 when the profit barrier is touched first within the
// future window, 0 otherwise.
//
// Within the same future bar the profit barrier is checked before the stop
// barrier. Intrabar path order is unknowable from OHLC data, so this is an
// optimistic simplification, kept exactly for reproducibility of trained
// models across runs.
//
// The last FuturePeriods entries cannot be labeled and stay 0; callers must
// drop them before training (see LabeledLen).
func Label(closes, highs, lows, atr []float64, cfg BarrierConfig) ([]int8, error) {
	n := len(closes)
	if len(highs) != n || len(lows) != n || len(atr) != n {
		return nil, fmt.Errorf("label inputs have mismatched lengths: closes=%d highs=%d lows=%d atr=%d",
			n, len(highs), len(lows), len(atr))
	}
	if cfg.FuturePeriods <= 0 {
		return nil, fmt.Errorf("future periods must be positive, got %d", cfg.FuturePeriods)
	}

	out := make([]int8, n)
	for i := 0; i < n-cfg.FuturePeriods; i++ {
		if atr[i] <= atrEpsilon {
			continue
		}
		profitBarrier := closes[i] + atr[i]*cfg.ProfitMult
		stopBarrier := closes[i] - atr[i]*cfg.StopMult

		for j := 1; j <= cfg.FuturePeriods; j++ {
			if highs[i+j] >= profitBarrier {
				out[i] = 1
				break
			}
			if lows[i+j] <= stopBarrier {
				break
			}
		}
	}
	return out, nil
}

// LabeledLen reports how many leading entries of a length-n sequence carry a
// fully computed label. The remaining tail reads past the window and must be
// excluded from training sets.
func LabeledLen(n, futurePeriods int) int {
	if n <= futurePeriods {
		return 0
	}
	return n - futurePeriods
}

// PositiveCount counts buy labels over the labeled prefix.
func PositiveCount(lbls []int8, labeledLen int) int {
	count := 0
	for i := 0; i < labeledLen && i < len(lbls); i++ {
		if lbls[i] == 1 {
			count++
		}
	}
	return count
}
