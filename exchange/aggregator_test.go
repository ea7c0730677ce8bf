package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
)

func obsAt(t time.Time, price, quantity float64) core.Observation {
	return core.Observation{Pair: "BTCUSDT", Price: price, Quantity: quantity, Time: t}
}

func TestAggregator_WindowFloor(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", "1m")
	require.NoError(t, err)

	base := time.Date(2023, 11, 14, 10, 30, 0, 0, time.UTC)

	sealed, err := agg.Ingest(obsAt(base.Add(17*time.Second), 100, 1))
	require.NoError(t, err)
	require.Nil(t, sealed)

	current := agg.Current()
	require.Equal(t, base, current.Time)
	require.False(t, current.Complete)
}

func TestAggregator_SealsOnLaterWindow(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", "1m")
	require.NoError(t, err)

	base := time.Date(2023, 11, 14, 10, 30, 0, 0, time.UTC)

	_, err = agg.Ingest(obsAt(base, 100, 1))
	require.NoError(t, err)
	_, err = agg.Ingest(obsAt(base.Add(10*time.Second), 110, 2))
	require.NoError(t, err)
	_, err = agg.Ingest(obsAt(base.Add(20*time.Second), 90, 1))
	require.NoError(t, err)
	_, err = agg.Ingest(obsAt(base.Add(30*time.Second), 105, 1))
	require.NoError(t, err)

	sealed, err := agg.Ingest(obsAt(base.Add(time.Minute), 106, 1))
	require.NoError(t, err)
	require.NotNil(t, sealed)
	require.True(t, sealed.Complete)
	require.Equal(t, base, sealed.Time)
	require.Equal(t, 100.0, sealed.Open)
	require.Equal(t, 110.0, sealed.High)
	require.Equal(t, 90.0, sealed.Low)
	require.Equal(t, 105.0, sealed.Close)
	require.Equal(t, 5.0, sealed.Volume)

	// the new open window holds the sealing observation
	require.Equal(t, 106.0, agg.Current().Open)
	require.Equal(t, base.Add(time.Minute), agg.Current().Time)
}

func TestAggregator_RejectsStale(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", "1m")
	require.NoError(t, err)

	base := time.Date(2023, 11, 14, 10, 30, 0, 0, time.UTC)
	_, err = agg.Ingest(obsAt(base, 100, 1))
	require.NoError(t, err)

	sealed, err := agg.Ingest(obsAt(base.Add(-time.Second), 50, 1))
	require.ErrorIs(t, err, core.ErrStaleObservation)
	require.Nil(t, sealed)

	// open candle untouched
	require.Equal(t, 100.0, agg.Current().Close)
	require.Equal(t, 1.0, agg.Current().Volume)
}

func TestAggregator_GapProducesNoSyntheticCandles(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", "1m")
	require.NoError(t, err)

	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	_, err = agg.Ingest(obsAt(base, 100, 1))
	require.NoError(t, err)

	// next observation lands five windows later; only one candle seals
	sealed, err := agg.Ingest(obsAt(base.Add(5*time.Minute), 120, 1))
	require.NoError(t, err)
	require.NotNil(t, sealed)
	require.Equal(t, base, sealed.Time)
	require.Equal(t, base.Add(5*time.Minute), agg.Current().Time)
}

func TestAggregator_Flush(t *testing.T) {
	agg, err := NewAggregator("BTCUSDT", "1m")
	require.NoError(t, err)

	require.Nil(t, agg.Flush())

	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	_, err = agg.Ingest(obsAt(base, 100, 1))
	require.NoError(t, err)

	sealed := agg.Flush()
	require.NotNil(t, sealed)
	require.True(t, sealed.Complete)
	require.Equal(t, core.Candle{}, agg.Current())
}

func TestAggregator_InvalidTimeframe(t *testing.T) {
	_, err := NewAggregator("BTCUSDT", "banana")
	require.Error(t, err)
}
