package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthive/quanthive/internal/config"
)

func TestApplyOptimizerOverrides_QuickOnlyWhenFlagGiven(t *testing.T) {
	cfgPath := ""

	// Flag omitted: the configured quick mode survives.
	cmd := newOptimizeCmd(&cfgPath, zerolog.Nop())
	require.NoError(t, cmd.ParseFlags(nil))

	cfg := &config.Config{}
	cfg.Optimizer.Quick = true
	cfg.Optimizer.Trials = 200
	applyOptimizerOverrides(cfg, cmd.Flags(), 0, false)
	assert.True(t, cfg.Optimizer.Quick, "omitting --quick must not discard the config value")
	assert.Equal(t, 200, cfg.Optimizer.Trials)

	// Flag given explicitly: it wins in both directions.
	cmd = newOptimizeCmd(&cfgPath, zerolog.Nop())
	require.NoError(t, cmd.ParseFlags([]string{"--quick=false", "--trials", "25"}))

	cfg = &config.Config{}
	cfg.Optimizer.Quick = true
	applyOptimizerOverrides(cfg, cmd.Flags(), 25, false)
	assert.False(t, cfg.Optimizer.Quick)
	assert.Equal(t, 25, cfg.Optimizer.Trials)
}
