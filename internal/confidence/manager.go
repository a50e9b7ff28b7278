// Package confidence implements the adaptive entry-confidence threshold.
// Each specialist owns one Manager; a run of profitable trades lowers the bar
// for new entries, a run of losses raises it, and the reaction scales with
// the magnitude of recent PnL rather than linearly.
package confidence

import (
	"fmt"
	"math"
)

// Config holds the confidence-manager hyperparameters, drawn from a
// specialist's strategy parameters at construction time.
type Config struct {
	Initial        float64 `yaml:"initial" json:"initial" validate:"gt=0,lt=1"`
	LearningRate   float64 `yaml:"learning_rate" json:"learning_rate" validate:"gt=0"`
	Min            float64 `yaml:"min" json:"min" validate:"gt=0,lt=1"`
	Max            float64 `yaml:"max" json:"max" validate:"gt=0,lt=1"`
	WindowSize     int     `yaml:"window_size" json:"window_size" validate:"gt=0"`
	PnLClamp       float64 `yaml:"pnl_clamp" json:"pnl_clamp" validate:"gt=0"`
	ReactivityMult float64 `yaml:"reactivity_mult" json:"reactivity_mult" validate:"gte=0"`
}

// DefaultConfig mirrors the values used when a trial does not override them.
func DefaultConfig() Config {
	return Config{
		Initial:        0.60,
		LearningRate:   0.05,
		Min:            0.505,
		Max:            0.85,
		WindowSize:     5,
		PnLClamp:       0.02,
		ReactivityMult: 5.0,
	}
}

// Validate rejects configurations the manager cannot run with. Persisted
// params pass through here before a manager is built from them.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("confidence window size must be positive, got %d", c.WindowSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("confidence learning rate must be positive, got %g", c.LearningRate)
	}
	if c.PnLClamp <= 0 {
		return fmt.Errorf("confidence pnl clamp must be positive, got %g", c.PnLClamp)
	}
	if c.Min > c.Max {
		return fmt.Errorf("confidence floor %.3f exceeds ceiling %.3f", c.Min, c.Max)
	}
	return nil
}

// Manager tracks a rolling window of realized trade PnL percentages and
// adapts the entry-confidence threshold after every closed trade.
type Manager struct {
	cfg        Config
	current    float64
	window     []float64
	head       int
	filled     int
	tradeCount int
}

// NewManager builds a manager seeded at the configured initial threshold,
// clamped into [Min, Max].
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		current: clamp(cfg.Initial, cfg.Min, cfg.Max),
		window:  make([]float64, cfg.WindowSize),
	}
}

// Update pushes a realized PnL percentage into the rolling window and moves
// the threshold. The adjustment is the clamped window mean scaled by the
// learning rate and amplified by a reactivity factor proportional to the
// mean's magnitude.
func (m *Manager) Update(pnlPct float64) {
	m.tradeCount++
	m.window[m.head] = pnlPct
	m.head = (m.head + 1) % len(m.window)
	if m.filled < len(m.window) {
		m.filled++
	}

	var sum float64
	for i := 0; i < m.filled; i++ {
		sum += m.window[i]
	}
	mean := sum / float64(m.filled)

	clamped := clamp(mean, -m.cfg.PnLClamp, m.cfg.PnLClamp)
	reactivity := 1 + math.Abs(clamped)*m.cfg.ReactivityMult
	adjustment := m.cfg.LearningRate * clamped * reactivity

	m.current = clamp(m.current-adjustment, m.cfg.Min, m.cfg.Max)
}

// Confidence returns the current entry threshold.
func (m *Manager) Confidence() float64 {
	return m.current
}

// TradeCount returns how many trade outcomes the manager has absorbed.
func (m *Manager) TradeCount() int {
	return m.tradeCount
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
