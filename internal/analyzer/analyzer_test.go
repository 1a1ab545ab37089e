package analyzer

import (
	"math"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharePrice(t *testing.T) {
	price, err := SharePrice(sdkmath.ZeroInt(), sdkmath.ZeroInt(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, price)

	price, err = SharePrice(sdkmath.ZeroInt(), sdkmath.ZeroInt(), 6)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, price, 1e-9)

	// 1000 shares backed by 1100 assets
	price, err = SharePrice(sdkmath.NewInt(1100), sdkmath.NewInt(1000), 0)
	require.NoError(t, err)
	assert.InDelta(t, 1101.0/1001.0, price, 1e-12)

	// with an offset of 3 the same backing needs 1000x the share units
	price, err = SharePrice(sdkmath.NewInt(1100), sdkmath.NewInt(1_000_000), 3)
	require.NoError(t, err)
	assert.InDelta(t, 1101.0*1000/1_001_000.0, price, 1e-12)

	_, err = SharePrice(sdkmath.NewInt(-1), sdkmath.ZeroInt(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = SharePrice(sdkmath.ZeroInt(), sdkmath.Int{}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnnualizedGrowth(t *testing.T) {
	// 1% over a tenth of a year is 10% a year
	growth, err := AnnualizedGrowth(1.0, 1.01, year/10)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, growth, 1e-9)

	growth, err = AnnualizedGrowth(2.0, 2.0, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, growth)

	_, err = AnnualizedGrowth(1, 1.1, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = AnnualizedGrowth(0, 1.1, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompoundDaily(t *testing.T) {
	assert.Zero(t, CompoundDaily(0))
	assert.Zero(t, CompoundDaily(-0.05))
	assert.Zero(t, CompoundDaily(math.NaN()))
	assert.InDelta(t, 0.105155, CompoundDaily(0.10), 1e-6)
	assert.Greater(t, CompoundDaily(0.05), 0.05)
}

func TestCalculateVolatility(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := CalculateVolatility([]Sample{{start, 1}}, 365)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// a constant growth rate has no volatility
	var steady []Sample
	for i := 0; i < 5; i++ {
		steady = append(steady, Sample{start.Add(time.Duration(i) * 24 * time.Hour), math.Pow(1.001, float64(i))})
	}
	vol, err := CalculateVolatility(steady, 365)
	require.NoError(t, err)
	assert.InDelta(t, 0, vol, 1e-9)

	// unsorted input is sorted before computing returns
	noisy := []Sample{
		{start.Add(48 * time.Hour), 1.02},
		{start, 1.00},
		{start.Add(24 * time.Hour), 0.99},
	}
	vol, err = CalculateVolatility(noisy, 365)
	require.NoError(t, err)
	assert.Greater(t, vol, 0.0)
	assert.True(t, noisy[0].Timestamp.Equal(start))

	_, err = CalculateVolatility([]Sample{{start, 0}, {start.Add(time.Hour), 0}}, 365)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPeriodsPerYear(t *testing.T) {
	assert.InDelta(t, 52560, PeriodsPerYear(10*time.Minute), 1e-9)
	assert.Zero(t, PeriodsPerYear(0))
}
