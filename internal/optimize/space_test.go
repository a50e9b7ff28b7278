package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpace_SamplesValidCandidates(t *testing.T) {
	space := NewSpace(1)
	for i := 0; i < 200; i++ {
		c := space.Sample()
		require.NoError(t, c.Params.Validate(), "sample %d out of bounds", i)

		assert.GreaterOrEqual(t, c.Params.Barriers.FuturePeriods, 12)
		assert.LessOrEqual(t, c.Params.Barriers.FuturePeriods, 48)
		assert.GreaterOrEqual(t, c.Hyper.LearningRate, 0.01)
		assert.LessOrEqual(t, c.Hyper.LearningRate, 0.2)
		assert.GreaterOrEqual(t, c.Hyper.FeatureFraction, 0.6)
		assert.LessOrEqual(t, c.Hyper.FeatureFraction, 1.0)
		assert.Less(t, c.Params.MinRiskScale, c.Params.MaxRiskScale)
	}
}

func TestSpace_DeterministicPerSeed(t *testing.T) {
	a := NewSpace(42).Sample()
	b := NewSpace(42).Sample()
	assert.Equal(t, a, b)

	c := NewSpace(43).Sample()
	assert.NotEqual(t, a, c)
}
