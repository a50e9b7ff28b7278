// Package telemetry exposes optimization metrics over Prometheus. The
// collectors implement the optimizer's observer hook, so wiring telemetry in
// costs one constructor call and no changes to the study loop.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StudyMetrics holds the optimization collectors on a private registry, so
// tests can run many instances without collector name collisions.
type StudyMetrics struct {
	registry *prometheus.Registry

	trialsTotal   *prometheus.CounterVec
	prunedTotal   *prometheus.CounterVec
	bestScore     *prometheus.GaugeVec
	trialDuration *prometheus.HistogramVec
}

// NewStudyMetrics builds and registers the collectors.
func NewStudyMetrics() *StudyMetrics {
	m := &StudyMetrics{
		registry: prometheus.NewRegistry(),
		trialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quanthive",
			Name:      "optimizer_trials_total",
			Help:      "Evaluated trials per specialist and outcome.",
		}, []string{"specialist", "outcome"}),
		prunedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quanthive",
			Name:      "optimizer_pruned_total",
			Help:      "Pruned trials per specialist and reason.",
		}, []string{"specialist", "reason"}),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quanthive",
			Name:      "optimizer_best_score",
			Help:      "Best composite score observed per specialist.",
		}, []string{"specialist"}),
		trialDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quanthive",
			Name:      "optimizer_trial_duration_seconds",
			Help:      "Wall time per trial, training and fold simulation included.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"specialist"}),
	}
	m.registry.MustRegister(m.trialsTotal, m.prunedTotal, m.bestScore, m.trialDuration)
	return m
}

// TrialDone records one finished trial.
func (m *StudyMetrics) TrialDone(specialist string, pruned bool, reason string, elapsed time.Duration) {
	outcome := "scored"
	if pruned {
		outcome = "pruned"
		m.prunedTotal.WithLabelValues(specialist, reason).Inc()
	}
	m.trialsTotal.WithLabelValues(specialist, outcome).Inc()
	m.trialDuration.WithLabelValues(specialist).Observe(elapsed.Seconds())
}

// BestScore records a new best for the specialist.
func (m *StudyMetrics) BestScore(specialist string, score float64) {
	m.bestScore.WithLabelValues(specialist).Set(score)
}

// Handler serves the registry in Prometheus exposition format.
func (m *StudyMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes /metrics and /healthz for the duration of a run.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

// NewServer builds the HTTP server; Start and Shutdown bound its lifetime.
func NewServer(addr string, metrics *StudyMetrics, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log.With().Str("component", "telemetry").Logger(),
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("telemetry listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("telemetry server stopped")
		}
	}()
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
