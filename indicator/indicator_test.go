package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
)

func closeCandle(i int, close float64) core.Candle {
	return core.Candle{
		Pair:     "BTCUSDT",
		Time:     time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		Close:    close,
		Complete: true,
	}
}

func TestEngine_RejectsDuplicateMetric(t *testing.T) {
	engine := NewEngine()

	require.NoError(t, engine.Register(SMA(10)))

	err := engine.Register(SMA(10))
	require.ErrorIs(t, err, core.ErrInvalidParameters)

	// a different period is a different metric
	require.NoError(t, engine.Register(SMA(20)))
}

func TestEngine_SeriesStayAligned(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Register(SMA(3)))

	closes := []float64{10, 11, 12, 13, 14}
	for i, close := range closes {
		engine.OnCandle(closeCandle(i, close))
	}

	series := engine.Series("sma_3")
	require.Equal(t, len(closes), series.Length())

	// undefined positions hold NaN
	require.True(t, math.IsNaN(series[0]))
	require.True(t, math.IsNaN(series[1]))
	require.Equal(t, 11.0, series[2])
	require.Equal(t, 12.0, series[3])
	require.Equal(t, 13.0, series[4])
}

func TestEngine_IgnoresPartialCandles(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Register(SMA(2)))

	partial := closeCandle(0, 10)
	partial.Complete = false

	require.Nil(t, engine.OnCandle(partial))
	require.Equal(t, 0, engine.Count())
	require.Equal(t, 0, engine.Series("sma_2").Length())
}

func TestEngine_DefinedMetricsOnly(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Register(SMA(3)))

	defined := engine.OnCandle(closeCandle(0, 10))
	require.Empty(t, defined)

	engine.OnCandle(closeCandle(1, 11))
	defined = engine.OnCandle(closeCandle(2, 12))
	require.Equal(t, map[string]float64{"sma_3": 11.0}, defined)
}
