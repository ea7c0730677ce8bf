package exchange

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xhit/go-str2duration/v2"

	"github.com/stratrun/stratrun/core"
)

const btc1hCSV = `time,open,high,low,close,volume
1609459200,28000.0,28500.0,27800.0,28400.0,120.5
1609462800,28400.0,28700.0,28300.0,28600.0,98.2
1609466400,28600.0,28900.0,28500.0,28550.0,80.1
`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVFeed_CandlesByPeriod(t *testing.T) {
	feed, err := NewCSVFeed("1h", PairFeed{
		Pair:      "BTCUSDT",
		File:      writeTempCSV(t, btc1hCSV),
		Timeframe: "1h",
	})
	require.NoError(t, err)

	start := time.Unix(1609459200, 0).UTC()
	candles, err := feed.CandlesByPeriod(context.Background(), "BTCUSDT", "1h",
		start, start.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, candles, 3)

	first := candles[0]
	require.Equal(t, 28000.0, first.Open)
	require.Equal(t, 28500.0, first.High)
	require.Equal(t, 27800.0, first.Low)
	require.Equal(t, 28400.0, first.Close)
	require.Equal(t, 120.5, first.Volume)
	require.True(t, first.Complete)
}

func TestCSVFeed_MissingPair(t *testing.T) {
	feed, err := NewCSVFeed("1h", PairFeed{
		Pair:      "BTCUSDT",
		File:      writeTempCSV(t, btc1hCSV),
		Timeframe: "1h",
	})
	require.NoError(t, err)

	_, err = feed.CandlesByLimit(context.Background(), "ETHUSDT", "1h", 10)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestCandleToObservations_RoundTrip(t *testing.T) {
	candle := core.Candle{
		Pair:   "BTCUSDT",
		Time:   time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:   28000,
		High:   28500,
		Low:    27800,
		Close:  28400,
		Volume: 120,
	}

	for _, timeframe := range []string{"1h", "1m", "2s", "1s"} {
		window, err := str2duration.ParseDuration(timeframe)
		require.NoError(t, err)

		observations := CandleToObservations(candle, window)
		require.Len(t, observations, 4)

		agg, err := NewAggregator("BTCUSDT", timeframe)
		require.NoError(t, err)

		for _, obs := range observations {
			sealed, err := agg.Ingest(obs)
			require.NoError(t, err, timeframe)
			require.Nil(t, sealed, timeframe)
		}

		rebuilt := agg.Flush()
		require.NotNil(t, rebuilt)
		require.Equal(t, candle.Time, rebuilt.Time, timeframe)
		require.Equal(t, candle.Open, rebuilt.Open, timeframe)
		require.Equal(t, candle.High, rebuilt.High, timeframe)
		require.Equal(t, candle.Low, rebuilt.Low, timeframe)
		require.Equal(t, candle.Close, rebuilt.Close, timeframe)
		require.InDelta(t, candle.Volume, rebuilt.Volume, 1e-9)
	}
}

func TestCSVFeed_TradesSubscription(t *testing.T) {
	feed, err := NewCSVFeed("1h", PairFeed{
		Pair:      "BTCUSDT",
		File:      writeTempCSV(t, btc1hCSV),
		Timeframe: "1h",
	})
	require.NoError(t, err)

	observations, errs := feed.TradesSubscription(context.Background(), "BTCUSDT")

	count := 0
	for range observations {
		count++
	}
	require.Equal(t, 12, count)

	select {
	case err, ok := <-errs:
		if ok {
			require.NoError(t, err)
		}
	default:
	}
}
