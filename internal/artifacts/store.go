// Package artifacts persists and restores optimization output: per-specialist
// model/scaler/params files plus one run metadata document tying them
// together. Every write goes through the atomic JSON layer, so a crashed or
// cancelled run never leaves a torn artifact on disk.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	qio "github.com/quanthive/quanthive/internal/io"
	"github.com/quanthive/quanthive/internal/market"
	"github.com/quanthive/quanthive/internal/model"
	"github.com/quanthive/quanthive/internal/optimize"
	"github.com/quanthive/quanthive/internal/risk"
	"github.com/quanthive/quanthive/internal/sim"
	"github.com/quanthive/quanthive/internal/strategy"
)

// FallbackToGeneralist is the resolution recorded for a regime whose own
// study did not produce a usable specialist.
const FallbackToGeneralist = "Fallback to Generalist"

const metadataFile = "metadata.json"

// ErrNoMetadata marks a directory with no completed run to load.
var ErrNoMetadata = errors.New("no run metadata found")

// SpecialistSummary is the per-specialist entry of the run metadata.
type SpecialistSummary struct {
	Status       string   `json:"status"`
	Score        float64  `json:"score,omitempty"`
	FeatureNames []string `json:"feature_names,omitempty"`
	ModelFile    string   `json:"model_file,omitempty"`
	ScalerFile   string   `json:"scaler_file,omitempty"`
	ParamsFile   string   `json:"params_file,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
}

// Metadata describes one completed optimization run. ValidUntil bounds how
// long the persisted models should be trusted; loading after that date warns
// but still loads.
type Metadata struct {
	RunID                string                       `json:"run_id"`
	LastOptimizationDate time.Time                    `json:"last_optimization_date"`
	ValidUntil           time.Time                    `json:"valid_until"`
	Assignments          map[string]string            `json:"regime_assignments"`
	Summary              map[string]SpecialistSummary `json:"optimization_summary"`
}

// Store reads and writes artifacts under one directory.
type Store struct {
	dir      string
	validity time.Duration
	log      zerolog.Logger
}

// NewStore builds a store rooted at dir. validity is how long a saved run
// stays fresh.
func NewStore(dir string, validity time.Duration, log zerolog.Logger) *Store {
	return &Store{
		dir:      dir,
		validity: validity,
		log:      log.With().Str("component", "artifacts").Logger(),
	}
}

// SaveRun persists every optimized study and finalizes the run metadata.
// Fallbacks are resolved here, eagerly: a regime whose study was skipped is
// reassigned to the generalist when one exists, and the metadata records the
// resolution. Metadata is written last so a partial save is never loadable.
func (s *Store) SaveRun(results []optimize.StudyResult, assignment optimize.Assignment, now time.Time) (*Metadata, error) {
	meta := &Metadata{
		RunID:                uuid.NewString(),
		LastOptimizationDate: now,
		ValidUntil:           now.Add(s.validity),
		Assignments:          make(map[string]string, len(assignment.Book)),
		Summary:              make(map[string]SpecialistSummary, len(results)),
	}

	optimized := make(map[string]bool, len(results))
	for _, res := range results {
		if res.Status != optimize.StatusOptimized {
			continue
		}
		summary, err := s.saveSpecialist(res)
		if err != nil {
			return nil, fmt.Errorf("failed to persist specialist %q: %w", res.Specialist, err)
		}
		meta.Summary[res.Specialist] = summary
		optimized[res.Specialist] = true
	}

	generalistReady := optimized[market.GeneralistName]
	for _, res := range results {
		if res.Status == optimize.StatusOptimized {
			continue
		}
		summary := SpecialistSummary{Status: optimize.StatusSkipped, Score: res.BestScore}
		if res.Specialist != market.GeneralistName && generalistReady {
			summary.Resolution = FallbackToGeneralist
		}
		meta.Summary[res.Specialist] = summary
	}

	for regime, name := range assignment.Book {
		if !optimized[name] && generalistReady {
			name = market.GeneralistName
		}
		meta.Assignments[regime.String()] = name
	}

	if err := qio.WriteJSONAtomic(filepath.Join(s.dir, metadataFile), meta); err != nil {
		return nil, fmt.Errorf("failed to persist run metadata: %w", err)
	}

	s.log.Info().
		Str("run_id", meta.RunID).
		Time("valid_until", meta.ValidUntil).
		Int("specialists", len(optimized)).
		Msg("run artifacts persisted")
	return meta, nil
}

func (s *Store) saveSpecialist(res optimize.StudyResult) (SpecialistSummary, error) {
	name := res.Specialist
	summary := SpecialistSummary{
		Status:       optimize.StatusOptimized,
		Score:        res.BestScore,
		FeatureNames: res.Trained.FeatureNames,
		ModelFile:    fmt.Sprintf("model_%s.json", name),
		ScalerFile:   fmt.Sprintf("scaler_%s.json", name),
		ParamsFile:   fmt.Sprintf("params_%s.json", name),
	}

	if err := qio.WriteJSONAtomic(filepath.Join(s.dir, summary.ModelFile), res.Trained.Model); err != nil {
		return summary, err
	}
	if err := qio.WriteJSONAtomic(filepath.Join(s.dir, summary.ScalerFile), res.Trained.Scaler); err != nil {
		return summary, err
	}
	if err := qio.WriteJSONAtomic(filepath.Join(s.dir, summary.ParamsFile), res.Best.Candidate.Params); err != nil {
		return summary, err
	}
	return summary, nil
}

// LoadMetadata reads the run document, warning when the run has expired.
func (s *Store) LoadMetadata(now time.Time) (*Metadata, error) {
	var meta Metadata
	if err := qio.ReadJSON(filepath.Join(s.dir, metadataFile), &meta); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoMetadata, s.dir)
		}
		return nil, err
	}

	if now.After(meta.ValidUntil) {
		s.log.Warn().
			Str("run_id", meta.RunID).
			Time("valid_until", meta.ValidUntil).
			Msg("persisted models have expired, consider re-optimizing")
	}
	return &meta, nil
}

// LoadTeam restores the regime book and the specialist set a simulation
// needs, from the latest persisted run.
func (s *Store) LoadTeam(now time.Time, costs risk.Costs) (*market.RegimeBook, map[string]*sim.Specialist, *Metadata, error) {
	meta, err := s.LoadMetadata(now)
	if err != nil {
		return nil, nil, nil, err
	}

	assignments := make(map[market.Regime]string, len(meta.Assignments))
	for raw, name := range meta.Assignments {
		regime, err := market.ParseRegime(raw)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("run %s has invalid assignment: %w", meta.RunID, err)
		}
		assignments[regime] = name
	}

	team := make(map[string]*sim.Specialist)
	for name, summary := range meta.Summary {
		if summary.Status != optimize.StatusOptimized {
			continue
		}
		specialist, err := s.loadSpecialist(name, summary, costs)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load specialist %q: %w", name, err)
		}
		team[name] = specialist
	}
	if len(team) == 0 {
		return nil, nil, nil, fmt.Errorf("run %s has no loadable specialists", meta.RunID)
	}

	return market.NewRegimeBook(assignments), team, meta, nil
}

func (s *Store) loadSpecialist(name string, summary SpecialistSummary, costs risk.Costs) (*sim.Specialist, error) {
	var clf model.Classifier
	if err := qio.ReadJSON(filepath.Join(s.dir, summary.ModelFile), &clf); err != nil {
		return nil, err
	}
	var scaler model.Scaler
	if err := qio.ReadJSON(filepath.Join(s.dir, summary.ScalerFile), &scaler); err != nil {
		return nil, err
	}
	var params strategy.Params
	if err := qio.ReadJSON(filepath.Join(s.dir, summary.ParamsFile), &params); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("persisted params are invalid: %w", err)
	}

	return sim.NewSpecialistFromParts(name, &clf, &scaler, summary.FeatureNames, params, costs), nil
}
