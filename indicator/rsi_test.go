package indicator

import (
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/require"
)

func TestRSI_Bounds(t *testing.T) {
	ind := RSI(3)
	closes := []float64{10, 12, 8, 14, 6, 16, 4, 18}

	for i, close := range closes {
		values := ind.Update(closeCandle(i, close))
		if i < 3 {
			require.Nil(t, values)
			continue
		}
		rsi := values["rsi_3"]
		require.GreaterOrEqual(t, rsi, 0.0)
		require.LessOrEqual(t, rsi, 100.0)
	}
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	ind := RSI(3)

	var values map[string]float64
	for i, close := range []float64{10, 11, 12, 13, 14} {
		values = ind.Update(closeCandle(i, close))
	}

	require.Equal(t, 100.0, values["rsi_3"])
}

func TestRSI_MatchesBatchImplementation(t *testing.T) {
	closes := []float64{
		44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00,
		46.03, 46.41, 46.22, 45.64, 46.21, 46.25, 45.71, 46.45,
	}
	const period = 14

	expected := talib.Rsi(closes, period)

	ind := RSI(period)
	for i, close := range closes {
		values := ind.Update(closeCandle(i, close))
		if i < period {
			require.Nil(t, values)
			continue
		}
		require.InDelta(t, expected[i], values["rsi_14"], 1e-6, "index %d", i)
	}
}
