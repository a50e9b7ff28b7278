// Package progress decouples long-running jobs from how their progress is
// surfaced. The optimizer publishes snapshots; sinks decide whether that
// means a log line, a metric update, or nothing.
package progress

import (
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Snapshot is one point-in-time view of a running study.
type Snapshot struct {
	Specialist  string
	TrialsDone  int
	TrialsTotal int
	BestScore   float64
	BestTrial   int
	Pruned      int
}

// Sink receives snapshots. Publish must be cheap and non-blocking; the
// coordinator calls it from its hot path.
type Sink interface {
	Publish(s Snapshot)
}

// Nop discards all snapshots.
type Nop struct{}

func (Nop) Publish(Snapshot) {}

// Log writes snapshots as structured log lines, rate-limited so a fast
// study cannot flood the output.
type Log struct {
	log     zerolog.Logger
	limiter *rate.Limiter
}

// NewLog builds a logging sink capped at perSecond lines per second with a
// small burst. Terminal snapshots are not special-cased; callers emit their
// own completion line.
func NewLog(log zerolog.Logger, perSecond float64) *Log {
	return &Log{
		log:     log.With().Str("component", "progress").Logger(),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (l *Log) Publish(s Snapshot) {
	if !l.limiter.Allow() {
		return
	}
	l.log.Info().
		Str("specialist", s.Specialist).
		Int("trials_done", s.TrialsDone).
		Int("trials_total", s.TrialsTotal).
		Int("pruned", s.Pruned).
		Float64("best_score", s.BestScore).
		Msg("study progress")
}

// Multi fans one snapshot out to several sinks.
type Multi []Sink

func (m Multi) Publish(s Snapshot) {
	for _, sink := range m {
		sink.Publish(s)
	}
}
