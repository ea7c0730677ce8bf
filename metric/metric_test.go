package metric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	require.Equal(t, 0.0, Mean(nil))
	require.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
}

func TestPayoff(t *testing.T) {
	// avg win 3, avg loss 1.5
	require.InDelta(t, 2.0, Payoff([]float64{2, 4, -1, -2}), 1e-9)

	// no losses caps the ratio
	require.Equal(t, 10.0, Payoff([]float64{1, 2, 3}))
}

func TestProfitFactor(t *testing.T) {
	require.InDelta(t, 2.0, ProfitFactor([]float64{2, 4, -1, -2}), 1e-9)
	require.Equal(t, 10.0, ProfitFactor([]float64{1, 2}))
}

func TestBootstrap(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	interval := Bootstrap(values, Mean, 2000, 0.95)
	require.LessOrEqual(t, interval.Lower, interval.Mean)
	require.GreaterOrEqual(t, interval.Upper, interval.Mean)
	// the interval brackets the true mean
	require.Less(t, interval.Lower, 5.5)
	require.Greater(t, interval.Upper, 5.5)
	require.Greater(t, interval.StdDev, 0.0)
}

func TestBootstrap_Empty(t *testing.T) {
	require.Equal(t, BootstrapInterval{}, Bootstrap(nil, Mean, 100, 0.95))
}
