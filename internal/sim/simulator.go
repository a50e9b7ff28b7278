// Package sim is the event-driven backtest engine: a single-threaded,
// bar-sequential replay that applies entries, exits, treasury allocation,
// and portfolio bookkeeping for a team of regime specialists.
package sim

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quanthive/quanthive/internal/confidence"
	"github.com/quanthive/quanthive/internal/market"
	"github.com/quanthive/quanthive/internal/model"
	"github.com/quanthive/quanthive/internal/risk"
	"github.com/quanthive/quanthive/internal/strategy"
)

// Phase tracks stop management of an open position.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseTrailing
)

// ExitReason records why a position was closed. Order reflects evaluation
// priority within a bar: the stop check always runs before trailing logic,
// and the circuit breaker overrides everything.
type ExitReason string

const (
	ExitTakeProfit     ExitReason = "TAKE_PROFIT"
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitTimeLimit      ExitReason = "TIME_LIMIT"
	ExitCircuitBreaker ExitReason = "CIRCUIT_BREAKER"
)

// Position is the single open trade; the core simulator does not pyramid.
type Position struct {
	EntryPrice   float64
	EntryTime    time.Time
	EntryIndex   int
	Size         float64 // asset units
	StopPrice    float64
	HighestPrice float64
	Phase        Phase
	Specialist   string
}

// ClosedTrade is an immutable ledger record of one round trip.
type ClosedTrade struct {
	Specialist string     `json:"specialist"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Side       string     `json:"side"`
	PnLUSD     float64    `json:"pnl_usd"`
	PnLPct     float64    `json:"pnl_pct"`
	Reason     ExitReason `json:"reason"`
}

// Predictor scores a standardized feature row with the probability of a
// favorable outcome. *model.Classifier satisfies it.
type Predictor interface {
	PredictProba(row []float64) (float64, error)
}

// Specialist is a loaded artifact ready to trade its regimes.
type Specialist struct {
	Name         string
	Model        Predictor
	Scaler       *model.Scaler
	Params       strategy.Params
	FeatureNames []string

	confidence *confidence.Manager
	sizer      *risk.Sizer
	featureBuf []float64
	scaledBuf  []float64
}

// NewSpecialist wires a trained artifact with its own confidence manager and
// sizer. Confidence state is never shared across specialists.
func NewSpecialist(name string, trained *model.Trained, params strategy.Params, costs risk.Costs) *Specialist {
	return NewSpecialistFromParts(name, trained.Model, trained.Scaler, trained.FeatureNames, params, costs)
}

// NewSpecialistFromParts assembles a specialist from its pieces; used when
// loading persisted artifacts.
func NewSpecialistFromParts(name string, predictor Predictor, scaler *model.Scaler, featureNames []string, params strategy.Params, costs risk.Costs) *Specialist {
	dim := len(featureNames)
	return &Specialist{
		Name:         name,
		Model:        predictor,
		Scaler:       scaler,
		Params:       params,
		FeatureNames: featureNames,
		confidence:   confidence.NewManager(params.Confidence),
		sizer:        risk.NewSizer(params, costs),
		featureBuf:   make([]float64, dim),
		scaledBuf:    make([]float64, dim),
	}
}

// DCAConfig is the treasury accumulation side channel: a fixed daily buy in
// bearish regimes, independent of the model signal.
type DCAConfig struct {
	Enabled        bool          `yaml:"enabled" default:"true"`
	DailyAmountUSD float64       `yaml:"daily_amount_usd" default:"10" validate:"gte=0"`
	MinCapitalUSD  float64       `yaml:"min_capital_usd" default:"100" validate:"gte=0"`
	MinInterval    time.Duration `yaml:"min_interval" default:"24h"`
}

// BreakerConfig halts a session once drawdown from the peak breaches the
// limit: the open position is liquidated and no further entries are taken.
type BreakerConfig struct {
	Enabled        bool    `yaml:"enabled" default:"true"`
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct" default:"0.25" validate:"gt=0,lte=1"`
}

// Config governs one simulation run.
type Config struct {
	InitialCapital float64       `yaml:"initial_capital" default:"100" validate:"gt=0"`
	Costs          risk.Costs    `yaml:"costs"`
	ATRFeature     string        `yaml:"atr_feature" default:"atr"`
	VolumeSMAKey   string        `yaml:"volume_sma_feature" default:"volume_sma_50"`
	DCA            DCAConfig     `yaml:"dca"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// Result is everything a run produces for reporting and scoring.
type Result struct {
	Trades          []ClosedTrade
	Values          []float64
	Timestamps      []time.Time
	Metrics         Metrics
	SessionWins     int
	SessionLosses   int
	DCABuys         int
	TreasuryUnits   float64
	BuyHoldReturn   float64
	BreakerTripped  bool
	SkippedBars     int // bars with no usable specialist
	FinalValue      float64
	InitialCapital  float64
}

// TraceEvent mirrors the open-position state after maintenance on one bar.
// Used by diagnostics and invariant tests; production runs leave tracing off.
type TraceEvent struct {
	Index      int
	InPosition bool
	Phase      Phase
	StopPrice  float64
}

// Simulator replays a frame bar by bar against a book of specialists.
type Simulator struct {
	cfg         Config
	book        *market.RegimeBook
	specialists map[string]*Specialist
	trace       func(TraceEvent)
	log         zerolog.Logger
}

// SetTrace installs a per-bar position observer; nil disables tracing.
func (s *Simulator) SetTrace(fn func(TraceEvent)) {
	s.trace = fn
}

// NewSimulator builds a simulator. The regime book must already have its
// fallbacks resolved; unknown specialists in the book simply never trade.
func NewSimulator(cfg Config, book *market.RegimeBook, specialists map[string]*Specialist, log zerolog.Logger) *Simulator {
	return &Simulator{
		cfg:         cfg,
		book:        book,
		specialists: specialists,
		log:         log.With().Str("component", "simulator").Logger(),
	}
}

// Run replays the frame in strict time order. All data is materialized in
// memory before the loop starts; nothing inside the loop touches I/O.
func (s *Simulator) Run(frame *market.Frame) (*Result, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to simulate invalid frame: %w", err)
	}
	n := frame.Len()
	if n == 0 {
		return nil, fmt.Errorf("refusing to simulate empty frame: %w", market.ErrUpstreamUnavailable)
	}

	atr, err := frame.Feature(s.cfg.ATRFeature)
	if err != nil {
		return nil, err
	}
	volumeSMA, err := frame.Feature(s.cfg.VolumeSMAKey)
	if err != nil {
		return nil, err
	}

	// Specialists missing feature columns in this frame are benched for the
	// whole run; their regimes hold.
	usable := make(map[string]bool, len(s.specialists))
	for name, sp := range s.specialists {
		usable[name] = frame.HasFeatures(sp.FeatureNames)
		if !usable[name] {
			s.log.Warn().Str("specialist", name).Msg("missing feature columns, specialist benched")
		}
	}

	res := &Result{
		Values:         make([]float64, 0, n),
		Timestamps:     make([]time.Time, 0, n),
		InitialCapital: s.cfg.InitialCapital,
	}

	capital := s.cfg.InitialCapital
	var treasuryUnits float64
	var pos *Position
	var lastDCA time.Time
	var haveDCA bool
	halted := false
	peakValue := capital

	for i := 0; i < n; i++ {
		price := frame.Close[i]
		ts := frame.Timestamps[i]

		// 1. Position maintenance and exits, in fixed priority order.
		if pos != nil {
			if price > pos.HighestPrice {
				pos.HighestPrice = price
			}

			switch {
			case price <= pos.StopPrice:
				reason := ExitStopLoss
				if pos.Phase == PhaseTrailing {
					reason = ExitTakeProfit
				}
				capital, treasuryUnits = s.closePosition(res, pos, price, ts, reason, capital, treasuryUnits)
				pos = nil

			case pos.Phase == PhaseInitial && price >= pos.EntryPrice*(1+s.specialistParams(pos).ProfitThreshold/2):
				// Enough unrealized gain: ratchet the stop to breakeven plus
				// round-trip fees and switch to trailing management.
				pos.Phase = PhaseTrailing
				breakeven := pos.EntryPrice * (1 + 2*s.cfg.Costs.FeeRate)
				if breakeven > pos.StopPrice {
					pos.StopPrice = breakeven
				}

			case pos.Phase == PhaseTrailing:
				// The trailing stop only ever moves up.
				trail := pos.HighestPrice - atr[i]*s.specialistParams(pos).TrailingATRMult
				if trail > pos.StopPrice {
					pos.StopPrice = trail
				}
			}

			if pos != nil && i-pos.EntryIndex >= s.specialistParams(pos).TimeLimitCandles {
				capital, treasuryUnits = s.closePosition(res, pos, price, ts, ExitTimeLimit, capital, treasuryUnits)
				pos = nil
			}
		}

		if s.trace != nil {
			ev := TraceEvent{Index: i, InPosition: pos != nil}
			if pos != nil {
				ev.Phase = pos.Phase
				ev.StopPrice = pos.StopPrice
			}
			s.trace(ev)
		}

		// 2. Circuit breaker on the portfolio value, before any new entry.
		if s.cfg.Breaker.Enabled && !halted {
			value := capital + positionValue(pos, price) + treasuryUnits*price
			if value > peakValue {
				peakValue = value
			}
			if peakValue > 0 && value/peakValue-1 <= -s.cfg.Breaker.MaxDrawdownPct {
				if pos != nil {
					capital, treasuryUnits = s.closePosition(res, pos, price, ts, ExitCircuitBreaker, capital, treasuryUnits)
					pos = nil
				}
				halted = true
				res.BreakerTripped = true
				s.log.Warn().Time("at", ts).Float64("value", value).Msg("circuit breaker tripped, entries suspended")
			}
		}

		// 3. Entry evaluation.
		entered := false
		if pos == nil && !halted {
			sp, ok := s.activeSpecialist(frame.Regimes[i], usable)
			if !ok {
				res.SkippedBars++
			} else if frame.Volume[i] >= volumeSMA[i] {
				// Liquidity gate passed; only now is the model queried.
				conviction, perr := s.predict(sp, frame, i)
				if perr == nil {
					threshold := sp.confidence.Confidence()
					if conviction > threshold {
						decision := sp.sizer.Size(conviction, threshold, price, capital)
						if decision.NotionalUSD > 0 {
							capital -= decision.TotalCostUSD
							pos = &Position{
								EntryPrice:   decision.EntryPrice,
								EntryTime:    ts,
								EntryIndex:   i,
								Size:         decision.NotionalUSD / decision.EntryPrice,
								StopPrice:    decision.EntryPrice - atr[i]*sp.Params.StopLossATRMult,
								HighestPrice: decision.EntryPrice,
								Phase:        PhaseInitial,
								Specialist:   sp.Name,
							}
							entered = true
						}
					}
				}
			}
		}

		// 4. Treasury DCA side channel for idle capital in bearish regimes.
		if pos == nil && !entered && !halted && s.cfg.DCA.Enabled && frame.Regimes[i].IsBearish() {
			if (!haveDCA || ts.Sub(lastDCA) >= s.cfg.DCA.MinInterval) && capital >= s.cfg.DCA.MinCapitalUSD {
				cost := s.cfg.DCA.DailyAmountUSD * (1 + s.cfg.Costs.FeeRate)
				if capital >= cost {
					qty := s.cfg.DCA.DailyAmountUSD / (price * (1 + s.cfg.Costs.SlippageRate))
					capital -= cost
					treasuryUnits += qty
					lastDCA = ts
					haveDCA = true
					res.DCABuys++
				}
			}
		}

		// 5. Bookkeeping: the identity total = capital + position + treasury
		// holds on every bar.
		total := capital + positionValue(pos, price) + treasuryUnits*price
		res.Values = append(res.Values, total)
		res.Timestamps = append(res.Timestamps, ts)
	}

	res.TreasuryUnits = treasuryUnits
	res.FinalValue = res.Values[len(res.Values)-1]
	if frame.Close[0] > 0 {
		res.BuyHoldReturn = frame.Close[n-1]/frame.Close[0] - 1
	}
	res.Metrics = ComputeMetrics(res.Values, res.Timestamps, res.Trades)

	s.log.Debug().
		Int("bars", n).
		Int("trades", len(res.Trades)).
		Int("dca_buys", res.DCABuys).
		Float64("final_value", res.FinalValue).
		Bool("breaker", res.BreakerTripped).
		Msg("simulation complete")

	return res, nil
}

// closePosition realizes PnL net of frictions, skims the treasury share from
// profits, feeds the owning specialist's confidence manager, and appends the
// ledger record.
func (s *Simulator) closePosition(res *Result, pos *Position, price float64, ts time.Time, reason ExitReason, capital, treasuryUnits float64) (float64, float64) {
	costs := s.cfg.Costs
	sellPrice := price * (1 - costs.SlippageRate)
	revenue := pos.Size * sellPrice * (1 - costs.FeeRate)
	entryOutlay := pos.Size * pos.EntryPrice * (1 + costs.FeeRate + costs.TaxRate)
	pnlUSD := revenue - entryOutlay

	// Net of frictions, so the sign always agrees with pnlUSD: a round trip
	// that grosses a hair above entry but loses to fees and tax reads as the
	// loss it is, both in the ledger and in the confidence window.
	var pnlPct float64
	if entryOutlay > 0 {
		pnlPct = pnlUSD / entryOutlay
	}

	if pnlUSD > 0 && price > 0 {
		skim := pnlUSD * s.specialistParams(pos).TreasuryAllocationPct
		revenue -= skim
		treasuryUnits += skim / price
	}
	capital += revenue

	if pnlUSD > 0 {
		res.SessionWins++
	} else {
		res.SessionLosses++
	}

	if sp, ok := s.specialists[pos.Specialist]; ok {
		sp.confidence.Update(pnlPct)
	}

	res.Trades = append(res.Trades, ClosedTrade{
		Specialist: pos.Specialist,
		EntryTime:  pos.EntryTime,
		ExitTime:   ts,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  sellPrice,
		Side:       "long",
		PnLUSD:     pnlUSD,
		PnLPct:     pnlPct,
		Reason:     reason,
	})

	return capital, treasuryUnits
}

// activeSpecialist resolves the bar's regime to its usable specialist.
func (s *Simulator) activeSpecialist(regime market.Regime, usable map[string]bool) (*Specialist, bool) {
	name, err := s.book.SpecialistFor(regime)
	if err != nil {
		return nil, false
	}
	sp, ok := s.specialists[name]
	if !ok || !usable[name] {
		return nil, false
	}
	return sp, true
}

// predict scores the bar's feature row through the specialist's scaler and
// model, reusing per-specialist buffers to stay allocation-free in the loop.
func (s *Simulator) predict(sp *Specialist, frame *market.Frame, i int) (float64, error) {
	if err := frame.FeatureRow(i, sp.FeatureNames, sp.featureBuf); err != nil {
		return 0, err
	}
	if err := sp.Scaler.TransformRow(sp.featureBuf, sp.scaledBuf); err != nil {
		return 0, err
	}
	return sp.Model.PredictProba(sp.scaledBuf)
}

func (s *Simulator) specialistParams(pos *Position) strategy.Params {
	if sp, ok := s.specialists[pos.Specialist]; ok {
		return sp.Params
	}
	return strategy.Default()
}

func positionValue(pos *Position, price float64) float64 {
	if pos == nil {
		return 0
	}
	return pos.Size * price
}
