package indicator

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/stretchr/testify/require"
)

func TestSMA_ExactMean(t *testing.T) {
	ind := SMA(4)
	closes := []float64{2, 4, 6, 8, 10, 12}

	var last map[string]float64
	for i, close := range closes[:3] {
		last = ind.Update(closeCandle(i, close))
		require.Nil(t, last)
	}

	last = ind.Update(closeCandle(3, closes[3]))
	require.Equal(t, 5.0, last["sma_4"])

	last = ind.Update(closeCandle(4, closes[4]))
	require.Equal(t, 7.0, last["sma_4"])

	last = ind.Update(closeCandle(5, closes[5]))
	require.Equal(t, 9.0, last["sma_4"])
}

func TestSMA_MatchesBatchImplementation(t *testing.T) {
	closes := []float64{
		44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00,
	}
	const period = 5

	expected := talib.Sma(closes, period)

	ind := SMA(period)
	for i, close := range closes {
		values := ind.Update(closeCandle(i, close))
		if i < period-1 {
			require.Nil(t, values)
			continue
		}
		require.InDelta(t, expected[i], values["sma_5"], 1e-9, "index %d", i)
	}
}

func TestEMA_Seeding(t *testing.T) {
	ind := EMA(3)

	values := ind.Update(closeCandle(0, 10))
	require.Equal(t, 10.0, values["ema_3"])

	// k = 0.5 for period 3
	values = ind.Update(closeCandle(1, 20))
	require.Equal(t, 15.0, values["ema_3"])

	values = ind.Update(closeCandle(2, 20))
	require.Equal(t, 17.5, values["ema_3"])
}

func TestBollinger_BandsAroundMean(t *testing.T) {
	ind := BollingerBands(4, 2.0)
	closes := []float64{10, 12, 14, 16}

	var values map[string]float64
	for i, close := range closes {
		values = ind.Update(closeCandle(i, close))
	}

	require.Equal(t, 13.0, values["boll_mid_4"])

	// sample stddev of {10,12,14,16} is sqrt(20/3)
	std := math.Sqrt(20.0 / 3.0)
	require.InDelta(t, 13+2*std, values["boll_upper_4"], 1e-9)
	require.InDelta(t, 13-2*std, values["boll_lower_4"], 1e-9)
}

func TestMACD_HistogramIsLineMinusSignal(t *testing.T) {
	ind := MACD(3, 6, 2)
	closes := []float64{10, 11, 12, 13, 12, 11, 12, 13, 14}

	var values map[string]float64
	for i, close := range closes {
		values = ind.Update(closeCandle(i, close))
	}

	line := values["macd_3_6_2"]
	signal := values["macd_signal_3_6_2"]
	hist := values["macd_hist_3_6_2"]
	require.InDelta(t, line-signal, hist, 1e-9)
}
