// Package persistence defines the storage contracts the research pipeline
// reads history through and writes results back to. Implementations live in
// subpackages; callers depend only on these interfaces.
package persistence

import (
	"context"
	"time"

	"github.com/quanthive/quanthive/internal/market"
	"github.com/quanthive/quanthive/internal/sim"
)

// TimeRange is a closed time window for history queries.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// BarStore serves the feature-annotated bar history for one asset. Frames
// come back strictly time-ordered; the regime column is validated at read
// time so a bad label never reaches the simulator.
type BarStore interface {
	// ReadRange loads every bar of the symbol inside the window.
	ReadRange(ctx context.Context, symbol string, tr TimeRange) (*market.Frame, error)

	// Count returns the number of bars in the window, for partition sizing
	// without materializing a frame.
	Count(ctx context.Context, symbol string, tr TimeRange) (int64, error)
}

// TradeLedger records simulation round trips for later inspection.
type TradeLedger interface {
	// RecordRun inserts a run's closed trades atomically under one run ID.
	RecordRun(ctx context.Context, runID string, trades []sim.ClosedTrade) error

	// ListRun retrieves a run's trades in execution order.
	ListRun(ctx context.Context, runID string) ([]sim.ClosedTrade, error)
}

// Health reports basic connectivity of a storage backend.
type Health interface {
	Ping(ctx context.Context) error
}
