package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quanthive/quanthive/internal/persistence"
	"github.com/quanthive/quanthive/internal/sim"
)

// LedgerRepo is the PostgreSQL TradeLedger.
type LedgerRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewLedgerRepo builds a repo.
func NewLedgerRepo(db *sqlx.DB, timeout time.Duration) *LedgerRepo {
	return &LedgerRepo{db: db, timeout: timeout}
}

// RecordRun inserts a run's trades in one transaction: either the whole
// ledger lands or none of it does.
func (r *LedgerRepo) RecordRun(ctx context.Context, runID string, trades []sim.ClosedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_ledger
			(run_id, specialist, entry_time, exit_time, entry_price, exit_price, side, pnl_usd, pnl_pct, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, trade := range trades {
		_, err := stmt.ExecContext(ctx,
			runID, trade.Specialist, trade.EntryTime, trade.ExitTime,
			trade.EntryPrice, trade.ExitPrice, trade.Side,
			trade.PnLUSD, trade.PnLPct, string(trade.Reason))
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return fmt.Errorf("run %s already recorded: %w", runID, err)
			}
			return fmt.Errorf("failed to insert ledger row: %w", err)
		}
	}

	return tx.Commit()
}

// ListRun retrieves one run's trades in execution order.
func (r *LedgerRepo) ListRun(ctx context.Context, runID string) ([]sim.ClosedTrade, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT specialist, entry_time, exit_time, entry_price, exit_price, side, pnl_usd, pnl_pct, reason
		FROM trade_ledger
		WHERE run_id = $1
		ORDER BY exit_time ASC`

	rows, err := r.db.QueryxContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []sim.ClosedTrade
	for rows.Next() {
		var t sim.ClosedTrade
		var reason string
		if err := rows.Scan(&t.Specialist, &t.EntryTime, &t.ExitTime,
			&t.EntryPrice, &t.ExitPrice, &t.Side, &t.PnLUSD, &t.PnLPct, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		t.Reason = sim.ExitReason(reason)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger: %w", err)
	}
	return trades, nil
}

var _ persistence.TradeLedger = (*LedgerRepo)(nil)
