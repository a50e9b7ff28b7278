package sim

import (
	"math"
	"time"
)

// sentinelRatio caps Sortino and profit factor when the denominator
// vanishes: all-positive return streams have no downside deviation and
// loss-free ledgers have no gross loss.
const sentinelRatio = 100.0

// Metrics summarizes one simulation's portfolio-value series and trade
// ledger. Computation is a pure function of its inputs; recomputing on the
// same series yields identical values.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Sortino          float64 `json:"sortino"`
	ProfitFactor     float64 `json:"profit_factor"`
	TradeCount       int     `json:"trade_count"`
	MeanTradePnL     float64 `json:"mean_trade_pnl"`
}

// ComputeMetrics derives risk-adjusted performance from the per-bar
// portfolio values, their timestamps, and the closed-trade ledger.
func ComputeMetrics(values []float64, timestamps []time.Time, trades []ClosedTrade) Metrics {
	m := Metrics{TradeCount: len(trades)}
	if len(values) < 2 {
		return m
	}

	initial, final := values[0], values[len(values)-1]
	if initial > 0 {
		m.TotalReturn = final/initial - 1
	}

	days := timestamps[len(timestamps)-1].Sub(timestamps[0]).Hours() / 24
	if days < 1 {
		days = 1
	}
	m.AnnualizedReturn = math.Pow(1+m.TotalReturn, 365.0/days) - 1

	m.MaxDrawdown = maxDrawdown(values)
	m.Sortino = sortinoRatio(values, periodsPerYear(timestamps))

	var grossProfit, grossLoss, pnlSum float64
	for _, trade := range trades {
		pnlSum += trade.PnLUSD
		if trade.PnLUSD > 0 {
			grossProfit += trade.PnLUSD
		} else {
			grossLoss += -trade.PnLUSD
		}
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		m.ProfitFactor = sentinelRatio
	}
	if len(trades) > 0 {
		m.MeanTradePnL = pnlSum / float64(len(trades))
	}

	return m
}

// maxDrawdown is the deepest peak-to-trough decline of the value series,
// reported as a negative fraction.
func maxDrawdown(values []float64) float64 {
	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := v/peak - 1
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// sortinoRatio annualizes mean per-bar return over downside deviation. A
// series with essentially no downside returns the sentinel when profitable.
func sortinoRatio(values []float64, perYear float64) float64 {
	if len(values) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var downSq float64
	var downN int
	for _, r := range returns {
		if r < 0 {
			downSq += r * r
			downN++
		}
	}
	if downN < 2 {
		if mean > 0 {
			return sentinelRatio
		}
		return 0
	}
	downsideStd := math.Sqrt(downSq / float64(downN-1))
	if downsideStd < 1e-9 {
		if mean > 0 {
			return sentinelRatio
		}
		return 0
	}

	sortino := (mean * perYear) / (downsideStd * math.Sqrt(perYear))
	if math.IsNaN(sortino) || math.IsInf(sortino, 0) {
		return 0
	}
	return sortino
}

// periodsPerYear derives the annualization factor from the observed bar
// spacing.
func periodsPerYear(timestamps []time.Time) float64 {
	if len(timestamps) < 2 {
		return 365 * 24 * 60
	}
	interval := timestamps[1].Sub(timestamps[0])
	if interval <= 0 {
		return 365 * 24 * 60
	}
	return (365 * 24 * time.Hour).Seconds() / interval.Seconds()
}
