package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/quanthive/quanthive/internal/market"
)

// GuardedBarStore shields callers from a flapping storage backend with a
// circuit breaker. While the circuit is open, reads fail fast with
// market.ErrUpstreamUnavailable instead of piling timeouts onto a struggling
// database.
type GuardedBarStore struct {
	inner   BarStore
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedBarStore wraps inner. The circuit opens after five consecutive
// failures and probes again after the cooldown.
func NewGuardedBarStore(inner BarStore, cooldown time.Duration, log zerolog.Logger) *GuardedBarStore {
	blog := log.With().Str("component", "bar_store_breaker").Logger()
	settings := gobreaker.Settings{
		Name:    "bar_store",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			blog.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("bar store circuit state changed")
		},
	}
	return &GuardedBarStore{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// ReadRange executes the read through the breaker.
func (g *GuardedBarStore) ReadRange(ctx context.Context, symbol string, tr TimeRange) (*market.Frame, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.ReadRange(ctx, symbol, tr)
	})
	if err != nil {
		return nil, g.translate(err)
	}
	return out.(*market.Frame), nil
}

// Count executes the count through the breaker.
func (g *GuardedBarStore) Count(ctx context.Context, symbol string, tr TimeRange) (int64, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Count(ctx, symbol, tr)
	})
	if err != nil {
		return 0, g.translate(err)
	}
	return out.(int64), nil
}

func (g *GuardedBarStore) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: bar store circuit open", market.ErrUpstreamUnavailable)
	}
	return err
}

var _ BarStore = (*GuardedBarStore)(nil)
