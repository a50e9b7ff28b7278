package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame(t *testing.T, n int) *Frame {
	t.Helper()
	f := NewFrame(n)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	atr := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		f.Timestamps = append(f.Timestamps, start.Add(time.Duration(i)*time.Hour))
		f.Open = append(f.Open, float64(100+i))
		f.High = append(f.High, float64(101+i))
		f.Low = append(f.Low, float64(99+i))
		f.Close = append(f.Close, float64(100+i))
		f.Volume = append(f.Volume, 10)
		regime := BullQuiet
		if i%2 == 1 {
			regime = BearQuiet
		}
		f.Regimes = append(f.Regimes, regime)
		atr = append(atr, float64(i))
	}
	f.Features["atr"] = atr
	require.NoError(t, f.Validate())
	return f
}

func TestFrame_FeatureLookup(t *testing.T) {
	f := sampleFrame(t, 4)

	col, err := f.Feature("atr")
	require.NoError(t, err)
	assert.Len(t, col, 4)

	_, err = f.Feature("rsi_14")
	assert.ErrorIs(t, err, ErrMissingFeature)

	assert.True(t, f.HasFeatures([]string{"atr"}))
	assert.False(t, f.HasFeatures([]string{"atr", "rsi_14"}))
}

func TestFrame_FeatureRow(t *testing.T) {
	f := sampleFrame(t, 4)
	dst := make([]float64, 1)
	require.NoError(t, f.FeatureRow(2, []string{"atr"}, dst))
	assert.Equal(t, 2.0, dst[0])

	assert.ErrorIs(t, f.FeatureRow(0, []string{"missing"}, dst), ErrMissingFeature)
}

func TestFrame_SliceSharesColumns(t *testing.T) {
	f := sampleFrame(t, 6)
	view := f.Slice(2, 5)

	assert.Equal(t, 3, view.Len())
	assert.Equal(t, f.Close[2], view.Close[0])
	assert.Equal(t, f.Features["atr"][2], view.Features["atr"][0])
}

func TestFrame_FilterRegimesPreservesOrder(t *testing.T) {
	f := sampleFrame(t, 6)
	bulls := f.FilterRegimes(map[Regime]bool{BullQuiet: true})

	require.Equal(t, 3, bulls.Len())
	for i := 0; i < bulls.Len(); i++ {
		assert.Equal(t, BullQuiet, bulls.Regimes[i])
		if i > 0 {
			assert.True(t, bulls.Timestamps[i].After(bulls.Timestamps[i-1]))
		}
	}
	assert.Len(t, bulls.Features["atr"], 3)
}

func TestFrame_ValidateCatchesDisorder(t *testing.T) {
	f := sampleFrame(t, 3)
	f.Timestamps[2] = f.Timestamps[0]
	assert.Error(t, f.Validate())

	g := sampleFrame(t, 3)
	g.Features["broken"] = []float64{1}
	assert.Error(t, g.Validate())
}

func TestFrame_BarInterval(t *testing.T) {
	f := sampleFrame(t, 3)
	assert.Equal(t, time.Hour, f.BarInterval())
	assert.Equal(t, time.Duration(0), NewFrame(0).BarInterval())
}

func TestParseRegime(t *testing.T) {
	r, err := ParseRegime("bull_volatile")
	require.NoError(t, err)
	assert.Equal(t, BullVolatile, r)
	assert.False(t, r.IsBearish())
	assert.True(t, BearVolatile.IsBearish())

	_, err = ParseRegime("sideways_chop")
	assert.ErrorIs(t, err, ErrUnknownRegime)
}

func TestRegimeBook_FallsBackToGeneralist(t *testing.T) {
	book := NewRegimeBook(map[Regime]string{BullQuiet: "bull_quiet"})

	name, err := book.SpecialistFor(BullQuiet)
	require.NoError(t, err)
	assert.Equal(t, "bull_quiet", name)

	name, err = book.SpecialistFor(LateralVolatile)
	require.NoError(t, err)
	assert.Equal(t, GeneralistName, name)

	assert.ElementsMatch(t, []string{"bull_quiet", GeneralistName}, book.Specialists())
}
