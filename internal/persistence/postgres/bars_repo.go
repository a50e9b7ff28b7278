// Package postgres implements the persistence contracts on PostgreSQL via
// sqlx. Feature columns ride in a JSONB map so new engineered features need
// no schema change.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quanthive/quanthive/internal/market"
	"github.com/quanthive/quanthive/internal/persistence"
)

// barRow mirrors one row of the bars table.
type barRow struct {
	Timestamp time.Time `db:"ts"`
	Open      float64   `db:"open"`
	High      float64   `db:"high"`
	Low       float64   `db:"low"`
	Close     float64   `db:"close"`
	Volume    float64   `db:"volume"`
	Regime    string    `db:"regime"`
	Features  []byte    `db:"features"`
}

// BarsRepo is the PostgreSQL BarStore.
type BarsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewBarsRepo builds a repo; timeout bounds each query.
func NewBarsRepo(db *sqlx.DB, timeout time.Duration) *BarsRepo {
	return &BarsRepo{db: db, timeout: timeout}
}

// ReadRange loads the window in ascending time order and assembles the
// column-oriented frame the core operates on.
func (r *BarsRepo) ReadRange(ctx context.Context, symbol string, tr persistence.TimeRange) (*market.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ts, open, high, low, close, volume, regime, features
		FROM bars
		WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC`

	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	frame := market.NewFrame(0)
	for rows.Next() {
		var row barRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan bar row: %w", err)
		}

		regime, err := market.ParseRegime(row.Regime)
		if err != nil {
			return nil, fmt.Errorf("bar at %s: %w", row.Timestamp.Format(time.RFC3339), err)
		}

		features := make(map[string]float64)
		if len(row.Features) > 0 {
			if err := json.Unmarshal(row.Features, &features); err != nil {
				return nil, fmt.Errorf("failed to decode features at %s: %w", row.Timestamp.Format(time.RFC3339), err)
			}
		}

		appendBar(frame, row, regime, features)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bars: %w", err)
	}

	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("bars table returned an inconsistent window: %w", err)
	}
	return frame, nil
}

// Count returns the bar count in the window.
func (r *BarsRepo) Count(ctx context.Context, symbol string, tr persistence.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	query := `SELECT COUNT(*) FROM bars WHERE symbol = $1 AND ts >= $2 AND ts <= $3`
	if err := r.db.QueryRowxContext(ctx, query, symbol, tr.From, tr.To).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bars for %s: %w", symbol, err)
	}
	return count, nil
}

// Ping checks connectivity.
func (r *BarsRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

// appendBar grows every frame column by one row. Feature columns appearing
// mid-history are backfilled with zeros so column lengths stay equal; the
// frame validation above is the final consistency gate.
func appendBar(frame *market.Frame, row barRow, regime market.Regime, features map[string]float64) {
	n := frame.Len()
	frame.Timestamps = append(frame.Timestamps, row.Timestamp)
	frame.Open = append(frame.Open, row.Open)
	frame.High = append(frame.High, row.High)
	frame.Low = append(frame.Low, row.Low)
	frame.Close = append(frame.Close, row.Close)
	frame.Volume = append(frame.Volume, row.Volume)
	frame.Regimes = append(frame.Regimes, regime)

	for name, value := range features {
		col, ok := frame.Features[name]
		if !ok {
			col = make([]float64, n)
		}
		frame.Features[name] = append(col, value)
	}
	for name, col := range frame.Features {
		if len(col) < n+1 {
			frame.Features[name] = append(col, 0)
		}
	}
}
