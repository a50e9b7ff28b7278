// Package optimize runs regime-segmented walk-forward studies: random search
// over the joint strategy/model space, expanding folds aligned to regime
// transitions, and median-aggregated composite scoring.
package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quanthive/quanthive/internal/market"
	"github.com/quanthive/quanthive/internal/model"
	"github.com/quanthive/quanthive/internal/progress"
	"github.com/quanthive/quanthive/internal/sim"
)

// Config governs one optimization run across all specialists.
type Config struct {
	Trials            int      `yaml:"trials" default:"200" validate:"gt=0"`
	Workers           int      `yaml:"workers" default:"4" validate:"gt=0"`
	Seed              int64    `yaml:"seed" default:"42"`
	Quick             bool     `yaml:"quick"`
	QualityThreshold  float64  `yaml:"quality_threshold" default:"0.1" validate:"gte=0"`
	MinRegimeBars     int      `yaml:"min_regime_bars" default:"5000" validate:"gt=0"`
	CandidateFeatures []string `yaml:"candidate_features" validate:"min=1"`

	Trainer model.TrainerConfig `yaml:"trainer"`
	Sim     sim.Config          `yaml:"sim"`
}

// Study statuses persisted into run metadata.
const (
	StatusOptimized = "optimized"
	StatusSkipped   = "skipped"
)

// TrialResult is the record one worker sends the coordinator for one
// evaluated candidate.
type TrialResult struct {
	Trial       int       `json:"trial"`
	Specialist  string    `json:"specialist"`
	Candidate   Candidate `json:"candidate"`
	Score       float64   `json:"score"`
	Trades      int       `json:"trades"`
	Folds       int       `json:"folds"`
	MedSortino  float64   `json:"med_sortino"`
	MedPF       float64   `json:"med_profit_factor"`
	MedAnnual   float64   `json:"med_annual_return"`
	Pruned      bool      `json:"pruned"`
	PruneReason string    `json:"prune_reason,omitempty"`

	Elapsed time.Duration `json:"-"`
}

// StudyResult summarizes one specialist's study.
type StudyResult struct {
	Specialist string          `json:"specialist"`
	Regimes    []market.Regime `json:"regimes"`
	Status     string          `json:"status"`
	BestScore  float64         `json:"best_score"`
	Best       *TrialResult    `json:"best,omitempty"`
	TrialsRun  int             `json:"trials_run"`
	PruneTally map[string]int  `json:"prune_tally"`

	// Trained is the final refit on the specialist's full history; nil when
	// the study was skipped.
	Trained *model.Trained `json:"-"`
}

// Observer receives per-trial events; telemetry implements it. A nil
// observer is valid.
type Observer interface {
	TrialDone(specialist string, pruned bool, reason string, elapsed time.Duration)
	BestScore(specialist string, score float64)
}

// Optimizer drives the studies. Trials run on a worker pool; all mutable
// study state (best snapshot, prune tally) lives in the coordinator
// goroutine, which consumes worker results over a channel.
type Optimizer struct {
	cfg      Config
	trainer  *model.Trainer
	sink     progress.Sink
	observer Observer
	log      zerolog.Logger
}

// New builds an optimizer. sink may be nil for silent runs.
func New(cfg Config, sink progress.Sink, observer Observer, log zerolog.Logger) *Optimizer {
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Optimizer{
		cfg:      cfg,
		trainer:  model.NewTrainer(cfg.Trainer, log),
		sink:     sink,
		observer: observer,
		log:      log.With().Str("component", "optimizer").Logger(),
	}
}

// Assignment maps each regime to the specialist that will own it: regimes
// with enough history train alone, the rest pool into the generalist.
type Assignment struct {
	Specialists map[string][]market.Regime
	Book        map[market.Regime]string
}

// PartitionRegimes decides the specialist layout from per-regime bar counts.
func PartitionRegimes(frame *market.Frame, minBars int) Assignment {
	counts := make(map[market.Regime]int)
	for _, r := range frame.Regimes {
		counts[r]++
	}

	a := Assignment{
		Specialists: make(map[string][]market.Regime),
		Book:        make(map[market.Regime]string),
	}
	for _, r := range market.AllRegimes() {
		name := market.GeneralistName
		if counts[r] >= minBars {
			name = r.String()
		}
		a.Book[r] = name
		a.Specialists[name] = append(a.Specialists[name], r)
	}
	return a
}

// Run executes one study per specialist, sequentially across specialists and
// parallel within each. Cancellation is cooperative: in-flight trials finish
// and their results are still counted.
func (o *Optimizer) Run(ctx context.Context, frame *market.Frame) ([]StudyResult, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to optimize invalid frame: %w", err)
	}

	assignment := PartitionRegimes(frame, o.cfg.MinRegimeBars)
	names := make([]string, 0, len(assignment.Specialists))
	for name := range assignment.Specialists {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]StudyResult, 0, len(names))
	for _, name := range names {
		regimes := assignment.Specialists[name]
		res := o.runStudy(ctx, frame, name, regimes)
		results = append(results, res)

		o.log.Info().
			Str("specialist", name).
			Str("status", res.Status).
			Float64("best_score", res.BestScore).
			Int("trials", res.TrialsRun).
			Msg("study finished")

		if ctx.Err() != nil {
			o.log.Warn().Msg("optimization cancelled, returning partial results")
			break
		}
	}
	return results, nil
}

func (o *Optimizer) runStudy(ctx context.Context, frame *market.Frame, name string, regimes []market.Regime) StudyResult {
	res := StudyResult{
		Specialist: name,
		Regimes:    regimes,
		Status:     StatusSkipped,
		PruneTally: make(map[string]int),
	}

	set := make(map[market.Regime]bool, len(regimes))
	for _, r := range regimes {
		set[r] = true
	}
	filtered := frame.FilterRegimes(set)

	plan := PlanFolds(filtered)
	if o.cfg.Quick {
		plan = QuickPlan(plan)
	}
	if len(plan.Folds) == 0 {
		res.PruneTally[PruneNoFolds] = 1
		o.log.Warn().Str("specialist", name).Int("bars", filtered.Len()).Msg("no viable folds, study skipped")
		return res
	}

	trialCh := make(chan int)
	resultCh := make(chan TrialResult)

	workers := o.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trial := range trialCh {
				started := time.Now()
				r := o.evaluate(trial, name, filtered, plan)
				r.Elapsed = time.Since(started)
				resultCh <- r
			}
		}()
	}

	// Feeder stops dispensing on cancellation; workers drain what they
	// already picked up.
	go func() {
		defer close(trialCh)
		for t := 0; t < o.cfg.Trials; t++ {
			select {
			case <-ctx.Done():
				return
			case trialCh <- t:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Coordinator: the only goroutine touching the tally and best snapshot.
	var best *TrialResult
	for r := range resultCh {
		res.TrialsRun++
		if r.Pruned {
			res.PruneTally[r.PruneReason]++
		} else if best == nil || r.Score > best.Score {
			clone := r
			best = &clone
			if o.observer != nil {
				o.observer.BestScore(name, r.Score)
			}
		}
		if o.observer != nil {
			o.observer.TrialDone(name, r.Pruned, r.PruneReason, r.Elapsed)
		}

		snap := progress.Snapshot{
			Specialist:  name,
			TrialsDone:  res.TrialsRun,
			TrialsTotal: o.cfg.Trials,
			Pruned:      prunedTotal(res.PruneTally),
		}
		if best != nil {
			snap.BestScore = best.Score
			snap.BestTrial = best.Trial
		}
		o.sink.Publish(snap)
	}

	if best == nil || best.Score <= o.cfg.QualityThreshold {
		return res
	}
	res.Best = best
	res.BestScore = best.Score

	// Refit the winner on the specialist's entire history for persistence.
	trained, err := o.trainer.Train(filtered, best.Candidate.Params, best.Candidate.Hyper, o.cfg.CandidateFeatures)
	if err != nil {
		o.log.Error().Err(err).Str("specialist", name).Msg("final refit failed, study downgraded to skipped")
		return res
	}
	res.Trained = trained
	res.Status = StatusOptimized
	return res
}

// evaluate runs one candidate through every fold and scores the medians.
func (o *Optimizer) evaluate(trial int, name string, filtered *market.Frame, plan FoldPlan) TrialResult {
	cand := NewSpace(o.cfg.Seed + int64(trial)).Sample()
	out := TrialResult{Trial: trial, Specialist: name, Candidate: cand}

	var outcomes []foldOutcome
	trainFailures := 0
	for _, fold := range plan.Folds {
		trainFrame := filtered.Slice(0, fold.TrainEnd)
		valFrame := filtered.Slice(fold.TrainEnd, fold.ValEnd)

		trained, err := o.trainer.Train(trainFrame, cand.Params, cand.Hyper, o.cfg.CandidateFeatures)
		if err != nil {
			trainFailures++
			continue
		}

		specialist := sim.NewSpecialist(name, trained, cand.Params, o.cfg.Sim.Costs)
		book := ownAllRegimes(name)
		simulator := sim.NewSimulator(o.cfg.Sim, book, map[string]*sim.Specialist{name: specialist}, zerolog.Nop())

		simRes, err := simulator.Run(valFrame)
		if err != nil {
			trainFailures++
			continue
		}
		outcomes = append(outcomes, foldOutcome{
			Sortino:      simRes.Metrics.Sortino,
			ProfitFactor: simRes.Metrics.ProfitFactor,
			Annualized:   simRes.Metrics.AnnualizedReturn,
			Trades:       simRes.Metrics.TradeCount,
		})
	}
	out.Folds = len(outcomes)

	if len(outcomes) == 0 {
		out.Pruned = true
		out.PruneReason = PruneNoFolds
		if trainFailures > 0 {
			out.PruneReason = PruneTrainFailure
		}
		return out
	}

	score, trades := compositeScore(outcomes)
	out.Score = score
	out.Trades = trades
	out.MedSortino = medianField(outcomes, func(f foldOutcome) float64 { return f.Sortino })
	out.MedPF = medianField(outcomes, func(f foldOutcome) float64 { return f.ProfitFactor })
	out.MedAnnual = medianField(outcomes, func(f foldOutcome) float64 { return f.Annualized })

	switch {
	case trades < minTrialTrades:
		out.Pruned = true
		out.PruneReason = PruneFewTrades
	case math.IsNaN(score):
		out.Pruned = true
		out.PruneReason = PruneScoreNaN
	case score < scoreFloor:
		out.Pruned = true
		out.PruneReason = PruneLowScore
	}
	return out
}

// ownAllRegimes builds a book routing every regime to one specialist; the
// validation frame only contains that specialist's regimes anyway.
func ownAllRegimes(name string) *market.RegimeBook {
	assignments := make(map[market.Regime]string, len(market.AllRegimes()))
	for _, r := range market.AllRegimes() {
		assignments[r] = name
	}
	return market.NewRegimeBook(assignments)
}

func prunedTotal(tally map[string]int) int {
	var total int
	for _, n := range tally {
		total += n
	}
	return total
}

func medianField(outcomes []foldOutcome, get func(foldOutcome) float64) float64 {
	values := make([]float64, len(outcomes))
	for i, o := range outcomes {
		values[i] = get(o)
	}
	return median(values)
}
