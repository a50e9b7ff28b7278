package market

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the core components.
var (
	ErrMissingFeature      = errors.New("missing feature column")
	ErrUnknownRegime       = errors.New("unknown regime label")
	ErrUpstreamUnavailable = errors.New("upstream data source unavailable")
)

// Regime classifies a bar into one of the market conditions the upstream
// pipeline tags history with. The set is closed: labels outside it are
// rejected at load time rather than defaulted at lookup time.
type Regime string

const (
	BullQuiet       Regime = "bull_quiet"
	BullVolatile    Regime = "bull_volatile"
	BearQuiet       Regime = "bear_quiet"
	BearVolatile    Regime = "bear_volatile"
	LateralQuiet    Regime = "lateral_quiet"
	LateralVolatile Regime = "lateral_volatile"
)

// AllRegimes lists the closed regime set in a stable order.
func AllRegimes() []Regime {
	return []Regime{BullQuiet, BullVolatile, BearQuiet, BearVolatile, LateralQuiet, LateralVolatile}
}

// ParseRegime validates a raw regime label from the bar table.
func ParseRegime(s string) (Regime, error) {
	r := Regime(s)
	switch r {
	case BullQuiet, BullVolatile, BearQuiet, BearVolatile, LateralQuiet, LateralVolatile:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegime, s)
}

// IsBearish reports whether the regime belongs to the bearish bucket used to
// gate treasury accumulation.
func (r Regime) IsBearish() bool {
	return r == BearQuiet || r == BearVolatile
}

func (r Regime) String() string {
	return string(r)
}

// GeneralistName is the specialist identifier for the pooled model that
// covers regimes too small to train alone.
const GeneralistName = "generalist"

// RegimeBook is the closed regime→specialist mapping. Fallbacks are resolved
// eagerly when the book is built, so the simulator does a single map lookup
// per bar with no fallback chain to walk.
type RegimeBook struct {
	specialists map[Regime]string
}

// NewRegimeBook builds a book from per-regime specialist assignments.
// Regimes absent from the assignment map resolve to the generalist.
func NewRegimeBook(assignments map[Regime]string) *RegimeBook {
	book := &RegimeBook{specialists: make(map[Regime]string, len(AllRegimes()))}
	for _, regime := range AllRegimes() {
		name, ok := assignments[regime]
		if !ok || name == "" {
			name = GeneralistName
		}
		book.specialists[regime] = name
	}
	return book
}

// SpecialistFor returns the specialist identifier owning the given regime.
func (b *RegimeBook) SpecialistFor(r Regime) (string, error) {
	name, ok := b.specialists[r]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegime, r)
	}
	return name, nil
}

// Specialists returns the distinct specialist identifiers in the book.
func (b *RegimeBook) Specialists() []string {
	seen := make(map[string]bool, len(b.specialists))
	var names []string
	for _, regime := range AllRegimes() {
		name := b.specialists[regime]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
