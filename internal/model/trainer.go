package model

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quanthive/quanthive/internal/labels"
	"github.com/quanthive/quanthive/internal/market"
	"github.com/quanthive/quanthive/internal/strategy"
)

// Training failure modes. Both are expected during optimization and convert
// into skip/prune outcomes upstream; neither aborts a run.
var (
	ErrInsufficientData  = errors.New("insufficient rows for training")
	ErrDegenerateLabels  = errors.New("too few positive labels for a usable fit")
	errEmptyFeatureSpace = errors.New("no usable feature columns")
)

const (
	// minTrainRows is the hard floor below which a fit is not attempted.
	minTrainRows = 500
	// minPositiveLabels guards against training on a label distribution the
	// classifier cannot learn from.
	minPositiveLabels = 15
)

// TrainerConfig holds the trainer's own knobs, separate from per-trial
// strategy parameters.
type TrainerConfig struct {
	TopKFeatures int    `yaml:"top_k_features" default:"12" validate:"gt=0"`
	ATRFeature   string `yaml:"atr_feature" default:"atr"`
}

// Trained bundles everything the simulator needs to act on a fitted
// specialist.
type Trained struct {
	Model        *Classifier
	Scaler       *Scaler
	FeatureNames []string
}

// Trainer labels a frame with the triple-barrier scheme, selects features,
// and fits a scaler plus boosted classifier for one regime/specialist.
type Trainer struct {
	cfg TrainerConfig
	log zerolog.Logger
}

// NewTrainer builds a trainer.
func NewTrainer(cfg TrainerConfig, log zerolog.Logger) *Trainer {
	return &Trainer{cfg: cfg, log: log.With().Str("component", "trainer").Logger()}
}

// Train fits a specialist on the frame using the trial's barrier parameters
// and model hyperparameters. Candidate features absent from the frame are
// dropped rather than failing the whole fit.
func (t *Trainer) Train(frame *market.Frame, params strategy.Params, hp HyperParams, candidateFeatures []string) (*Trained, error) {
	n := frame.Len()
	if n < minTrainRows {
		return nil, fmt.Errorf("%w: have %d rows, need %d", ErrInsufficientData, n, minTrainRows)
	}

	atr, err := frame.Feature(t.cfg.ATRFeature)
	if err != nil {
		return nil, err
	}

	lbls, err := labels.Label(frame.Close, frame.High, frame.Low, atr, params.Barriers)
	if err != nil {
		return nil, fmt.Errorf("failed to label training frame: %w", err)
	}

	// The last FuturePeriods rows carry incomplete labels; training on them
	// would leak future data into the fit.
	labeled := labels.LabeledLen(n, params.Barriers.FuturePeriods)
	if labeled < minTrainRows {
		return nil, fmt.Errorf("%w: %d labeled rows after dropping the %d-bar tail",
			ErrInsufficientData, labeled, params.Barriers.FuturePeriods)
	}

	positives := labels.PositiveCount(lbls, labeled)
	if positives < minPositiveLabels {
		return nil, fmt.Errorf("%w: %d positive labels in %d rows", ErrDegenerateLabels, positives, labeled)
	}

	usable := make([]string, 0, len(candidateFeatures))
	for _, name := range candidateFeatures {
		if _, ok := frame.Features[name]; ok {
			usable = append(usable, name)
		}
	}
	if len(usable) == 0 {
		return nil, errEmptyFeatureSpace
	}

	rows := make([][]float64, labeled)
	for i := 0; i < labeled; i++ {
		row := make([]float64, len(usable))
		for j, name := range usable {
			row[j] = frame.Features[name][i]
		}
		rows[i] = row
	}
	y := lbls[:labeled]

	selected := SelectTopK(rows, y, usable, t.cfg.TopKFeatures)
	if len(selected) < len(usable) {
		rows = projectColumns(rows, usable, selected)
	}

	scaler, err := FitScaler(rows, selected)
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	scaled, err := scaler.Transform(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scale training rows: %w", err)
	}

	clf, err := Fit(scaled, y, hp)
	if err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}

	t.log.Debug().
		Int("rows", labeled).
		Int("positives", positives).
		Int("features", len(selected)).
		Int("trees", len(clf.Trees)).
		Msg("specialist trained")

	return &Trained{Model: clf, Scaler: scaler, FeatureNames: selected}, nil
}

// projectColumns rewrites row-major samples down to the selected feature
// subset, preserving order.
func projectColumns(rows [][]float64, all, selected []string) [][]float64 {
	idx := make([]int, 0, len(selected))
	pos := make(map[string]int, len(all))
	for j, name := range all {
		pos[name] = j
	}
	for _, name := range selected {
		idx = append(idx, pos[name])
	}

	out := make([][]float64, len(rows))
	for i, row := range rows {
		projected := make([]float64, len(idx))
		for k, j := range idx {
			projected[k] = row[j]
		}
		out[i] = projected
	}
	return out
}
