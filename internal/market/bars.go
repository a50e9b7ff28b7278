package market

import (
	"fmt"
	"time"
)

// Bar is a single time step of the feature-annotated price table.
// Bars are immutable once produced; the engineered feature columns live on
// the owning Frame to keep the hot simulation loop allocation-free.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Regime    Regime
}

// Frame is a column-oriented, strictly time-ordered bar table. It is the
// single input surface of the core: OHLCV columns, a regime column, and any
// number of engineered feature columns keyed by name.
type Frame struct {
	Timestamps []time.Time
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
	Regimes    []Regime
	Features   map[string][]float64
}

// NewFrame allocates an empty frame with capacity n.
func NewFrame(n int) *Frame {
	return &Frame{
		Timestamps: make([]time.Time, 0, n),
		Open:       make([]float64, 0, n),
		High:       make([]float64, 0, n),
		Low:        make([]float64, 0, n),
		Close:      make([]float64, 0, n),
		Volume:     make([]float64, 0, n),
		Regimes:    make([]Regime, 0, n),
		Features:   make(map[string][]float64),
	}
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int {
	return len(f.Timestamps)
}

// Bar materializes the bar at index i.
func (f *Frame) Bar(i int) Bar {
	return Bar{
		Timestamp: f.Timestamps[i],
		Open:      f.Open[i],
		High:      f.High[i],
		Low:       f.Low[i],
		Close:     f.Close[i],
		Volume:    f.Volume[i],
		Regime:    f.Regimes[i],
	}
}

// Feature returns the named feature column, or an error if the upstream
// pipeline did not supply it.
func (f *Frame) Feature(name string) ([]float64, error) {
	col, ok := f.Features[name]
	if !ok {
		return nil, fmt.Errorf("feature %q: %w", name, ErrMissingFeature)
	}
	return col, nil
}

// HasFeatures reports whether every named feature column is present.
func (f *Frame) HasFeatures(names []string) bool {
	for _, name := range names {
		if _, ok := f.Features[name]; !ok {
			return false
		}
	}
	return true
}

// FeatureRow copies the features at index i into dst in the order of names.
// dst must have len(names) capacity.
func (f *Frame) FeatureRow(i int, names []string, dst []float64) error {
	for k, name := range names {
		col, ok := f.Features[name]
		if !ok {
			return fmt.Errorf("feature %q at bar %d: %w", name, i, ErrMissingFeature)
		}
		dst[k] = col[i]
	}
	return nil
}

// Slice returns a half-open view [i, j) of the frame. Columns are shared,
// not copied; callers must treat views as read-only.
func (f *Frame) Slice(i, j int) *Frame {
	sub := &Frame{
		Timestamps: f.Timestamps[i:j],
		Open:       f.Open[i:j],
		High:       f.High[i:j],
		Low:        f.Low[i:j],
		Close:      f.Close[i:j],
		Volume:     f.Volume[i:j],
		Regimes:    f.Regimes[i:j],
		Features:   make(map[string][]float64, len(f.Features)),
	}
	for name, col := range f.Features {
		sub.Features[name] = col[i:j]
	}
	return sub
}

// FilterRegimes returns a new frame holding only the bars whose regime is in
// the given set. Time order is preserved; the result owns its columns.
func (f *Frame) FilterRegimes(set map[Regime]bool) *Frame {
	out := NewFrame(f.Len())
	out.Features = make(map[string][]float64, len(f.Features))
	for name := range f.Features {
		out.Features[name] = make([]float64, 0, f.Len())
	}
	for i := 0; i < f.Len(); i++ {
		if !set[f.Regimes[i]] {
			continue
		}
		out.Timestamps = append(out.Timestamps, f.Timestamps[i])
		out.Open = append(out.Open, f.Open[i])
		out.High = append(out.High, f.High[i])
		out.Low = append(out.Low, f.Low[i])
		out.Close = append(out.Close, f.Close[i])
		out.Volume = append(out.Volume, f.Volume[i])
		out.Regimes = append(out.Regimes, f.Regimes[i])
		for name, col := range f.Features {
			out.Features[name] = append(out.Features[name], col[i])
		}
	}
	return out
}

// Validate checks the frame invariants: equal column lengths and strictly
// ascending, unique timestamps.
func (f *Frame) Validate() error {
	n := f.Len()
	if len(f.Open) != n || len(f.High) != n || len(f.Low) != n ||
		len(f.Close) != n || len(f.Volume) != n || len(f.Regimes) != n {
		return fmt.Errorf("frame columns have inconsistent lengths (bars=%d)", n)
	}
	for name, col := range f.Features {
		if len(col) != n {
			return fmt.Errorf("feature column %q has %d rows, expected %d", name, len(col), n)
		}
	}
	for i := 1; i < n; i++ {
		if !f.Timestamps[i].After(f.Timestamps[i-1]) {
			return fmt.Errorf("timestamps not strictly ascending at index %d (%s then %s)",
				i, f.Timestamps[i-1].Format(time.RFC3339), f.Timestamps[i].Format(time.RFC3339))
		}
	}
	return nil
}

// BarInterval estimates the bar spacing from the first two timestamps.
// Frames with fewer than two bars report a zero interval.
func (f *Frame) BarInterval() time.Duration {
	if f.Len() < 2 {
		return 0
	}
	return f.Timestamps[1].Sub(f.Timestamps[0])
}
