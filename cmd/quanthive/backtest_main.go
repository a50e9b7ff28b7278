package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quanthive/quanthive/internal/artifacts"
	"github.com/quanthive/quanthive/internal/config"
	"github.com/quanthive/quanthive/internal/persistence/postgres"
	"github.com/quanthive/quanthive/internal/sim"
)

func newBacktestCmd(configPath *string, logger zerolog.Logger) *cobra.Command {
	var (
		fromRaw string
		toRaw   string
		record  bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the persisted specialist team over a history window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			window, err := parseWindow(fromRaw, toRaw)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, cleanup, err := openBarStore(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			now := time.Now().UTC()
			artifactStore := artifacts.NewStore(cfg.ArtifactsDir, cfg.Validity.Std(), logger)
			book, team, meta, err := artifactStore.LoadTeam(now, cfg.Optimizer.Sim.Costs)
			if err != nil {
				return fmt.Errorf("failed to load specialist team: %w", err)
			}
			logger.Info().
				Str("run_id", meta.RunID).
				Int("specialists", len(team)).
				Msg("specialist team loaded")

			frame, err := store.ReadRange(ctx, cfg.Symbol, window)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			simulator := sim.NewSimulator(cfg.Optimizer.Sim, book, team, logger)
			result, err := simulator.Run(frame)
			if err != nil {
				return err
			}
			reportBacktest(logger, result)

			if record {
				db, err := sqlx.Open("postgres", cfg.Database.DSN)
				if err != nil {
					return fmt.Errorf("failed to open database for ledger: %w", err)
				}
				defer db.Close()

				ledger := postgres.NewLedgerRepo(db, cfg.Database.QueryTimeout.Std())
				backtestID := uuid.NewString()
				if err := ledger.RecordRun(ctx, backtestID, result.Trades); err != nil {
					return fmt.Errorf("failed to record ledger: %w", err)
				}
				logger.Info().Str("backtest_id", backtestID).Int("trades", len(result.Trades)).Msg("ledger recorded")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromRaw, "from", "", "Window start, RFC3339 (default: 2 years ago)")
	cmd.Flags().StringVar(&toRaw, "to", "", "Window end, RFC3339 (default: now)")
	cmd.Flags().BoolVar(&record, "record", false, "Persist the trade ledger to the database")
	return cmd
}

func reportBacktest(logger zerolog.Logger, result *sim.Result) {
	m := result.Metrics
	logger.Info().
		Float64("initial_capital", result.InitialCapital).
		Float64("final_value", result.FinalValue).
		Float64("total_return", m.TotalReturn).
		Float64("annualized_return", m.AnnualizedReturn).
		Float64("buy_hold_return", result.BuyHoldReturn).
		Float64("max_drawdown", m.MaxDrawdown).
		Float64("sortino", m.Sortino).
		Float64("profit_factor", m.ProfitFactor).
		Int("trades", m.TradeCount).
		Int("wins", result.SessionWins).
		Int("losses", result.SessionLosses).
		Int("dca_buys", result.DCABuys).
		Float64("treasury_units", result.TreasuryUnits).
		Bool("breaker_tripped", result.BreakerTripped).
		Msg("backtest complete")

	if result.BreakerTripped {
		logger.Warn().Msg("session ended under circuit-breaker suspension")
	}
	if m.TotalReturn < result.BuyHoldReturn {
		logger.Warn().
			Float64("shortfall", result.BuyHoldReturn-m.TotalReturn).
			Msg("strategy underperformed buy-and-hold on this window")
	}
}
