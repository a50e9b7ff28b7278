package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quanthive/quanthive/internal/artifacts"
	"github.com/quanthive/quanthive/internal/config"
	"github.com/quanthive/quanthive/internal/optimize"
	"github.com/quanthive/quanthive/internal/persistence"
	"github.com/quanthive/quanthive/internal/persistence/postgres"
	"github.com/quanthive/quanthive/internal/progress"
	"github.com/quanthive/quanthive/internal/telemetry"
)

func newOptimizeCmd(configPath *string, logger zerolog.Logger) *cobra.Command {
	var (
		fromRaw string
		toRaw   string
		trials  int
		quick   bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run walk-forward optimization and persist the winning specialists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			applyOptimizerOverrides(cfg, cmd.Flags(), trials, quick)

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

			var metrics *telemetry.StudyMetrics
			if cfg.Telemetry.Enabled {
				metrics = telemetry.NewStudyMetrics()
				server := telemetry.NewServer(cfg.Telemetry.Addr, metrics, logger)
				server.Start()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					server.Shutdown(shutdownCtx)
				}()
			}

			logger.Info().
				Str("symbol", cfg.Symbol).
				Time("from", window.From).
				Time("to", window.To).
				Bool("quick", cfg.Optimizer.Quick).
				Msg("loading bar history")

			frame, err := store.ReadRange(ctx, cfg.Symbol, window)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			logger.Info().Int("bars", frame.Len()).Msg("history loaded")

			sink := progress.NewLog(logger, 0.5)
			var observer optimize.Observer
			if metrics != nil {
				observer = metrics
			}

			opt := optimize.New(cfg.Optimizer, sink, observer, logger)
			results, err := opt.Run(ctx, frame)
			if err != nil {
				return err
			}

			assignment := optimize.PartitionRegimes(frame, cfg.Optimizer.MinRegimeBars)
			artifactStore := artifacts.NewStore(cfg.ArtifactsDir, cfg.Validity.Std(), logger)
			meta, err := artifactStore.SaveRun(results, assignment, time.Now().UTC())
			if err != nil {
				return err
			}

			for _, res := range results {
				logger.Info().
					Str("specialist", res.Specialist).
					Str("status", res.Status).
					Float64("best_score", res.BestScore).
					Int("trials", res.TrialsRun).
					Interface("prune_tally", res.PruneTally).
					Msg("study summary")
			}
			logger.Info().
				Str("run_id", meta.RunID).
				Time("valid_until", meta.ValidUntil).
				Msg("optimization complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&fromRaw, "from", "", "Window start, RFC3339 (default: 2 years ago)")
	cmd.Flags().StringVar(&toRaw, "to", "", "Window end, RFC3339 (default: now)")
	cmd.Flags().IntVar(&trials, "trials", 0, "Override the configured trial budget")
	cmd.Flags().BoolVar(&quick, "quick", false, "Validate on the most recent fold only")
	return cmd
}

// applyOptimizerOverrides layers the command-line flags over the loaded
// config. The quick override only applies when the flag was given, so a
// quick: true config value survives a plain invocation.
func applyOptimizerOverrides(cfg *config.Config, flags *pflag.FlagSet, trials int, quick bool) {
	if trials > 0 {
		cfg.Optimizer.Trials = trials
	}
	if flags.Changed("quick") {
		cfg.Optimizer.Quick = quick
	}
}

// openBarStore assembles the storage stack: PostgreSQL behind a circuit
// breaker, optionally fronted by the Redis cache.
func openBarStore(cfg *config.Config, logger zerolog.Logger) (persistence.BarStore, func(), error) {
	db, err := sqlx.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	var store persistence.BarStore = postgres.NewBarsRepo(db, cfg.Database.QueryTimeout.Std())
	store = persistence.NewGuardedBarStore(store, cfg.Database.BreakerCooldown.Std(), logger)

	cleanup := func() { db.Close() }
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		store = persistence.NewCachedBarStore(store, rdb, cfg.Redis.TTL.Std(), logger)
		cleanup = func() {
			rdb.Close()
			db.Close()
		}
	}
	return store, cleanup, nil
}

func parseWindow(fromRaw, toRaw string) (persistence.TimeRange, error) {
	now := time.Now().UTC()
	tr := persistence.TimeRange{From: now.AddDate(-2, 0, 0), To: now}

	if fromRaw != "" {
		from, err := time.Parse(time.RFC3339, fromRaw)
		if err != nil {
			return tr, fmt.Errorf("invalid --from: %w", err)
		}
		tr.From = from
	}
	if toRaw != "" {
		to, err := time.Parse(time.RFC3339, toRaw)
		if err != nil {
			return tr, fmt.Errorf("invalid --to: %w", err)
		}
		tr.To = to
	}
	if !tr.From.Before(tr.To) {
		return tr, fmt.Errorf("window start %s is not before end %s", tr.From, tr.To)
	}
	return tr, nil
}
