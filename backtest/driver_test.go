package backtest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/logger"
)

const driverCSV = `time,open,high,low,close,volume
1609459200,28000.0,28500.0,27800.0,28400.0,120.0
1609462800,28400.0,28700.0,28300.0,28600.0,98.0
1609466400,28600.0,28900.0,28500.0,28550.0,80.0
1609470000,28550.0,28800.0,28400.0,28700.0,90.0
`

func newTestFeed(t *testing.T) *exchange.CSVFeed {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(driverCSV), 0o644))

	feed, err := exchange.NewCSVFeed("1h", exchange.PairFeed{
		Pair:      "BTCUSDT",
		File:      path,
		Timeframe: "1h",
	})
	require.NoError(t, err)
	return feed
}

type failingFeeder struct {
	core.Feeder
	empty bool
}

func (f failingFeeder) CandlesByPeriod(context.Context, string, string, time.Time, time.Time) ([]core.Candle, error) {
	if f.empty {
		return nil, nil
	}
	return nil, errors.New("connection reset")
}

func TestDriver_LoadOnce(t *testing.T) {
	driver, err := NewDriver(newTestFeed(t), "BTCUSDT", "1h", logger.Noop())
	require.NoError(t, err)

	require.NoError(t, driver.Load(context.Background()))
	require.Equal(t, StatusLoaded, driver.Status())

	require.Error(t, driver.Load(context.Background()))
}

func TestDriver_LoadFailure(t *testing.T) {
	driver, err := NewDriver(failingFeeder{}, "BTCUSDT", "1h", logger.Noop())
	require.NoError(t, err)

	err = driver.Load(context.Background())
	require.ErrorIs(t, err, core.ErrHistoryFetch)
}

func TestDriver_EmptyHistoryFails(t *testing.T) {
	driver, err := NewDriver(failingFeeder{empty: true}, "BTCUSDT", "1h", logger.Noop())
	require.NoError(t, err)

	err = driver.Load(context.Background())
	require.ErrorIs(t, err, core.ErrHistoryFetch)
}

func TestDriver_ReplayReconstructsHistory(t *testing.T) {
	driver, err := NewDriver(newTestFeed(t), "BTCUSDT", "1h", logger.Noop())
	require.NoError(t, err)

	var sealed []core.Candle
	driver.Subscribe(func(candle core.Candle) {
		sealed = append(sealed, candle)
	}, true)

	require.NoError(t, driver.Load(context.Background()))
	require.NoError(t, driver.Run(context.Background()))
	require.Equal(t, StatusFinished, driver.Status())

	require.Len(t, sealed, 4)
	require.Equal(t, 28000.0, sealed[0].Open)
	require.Equal(t, 28500.0, sealed[0].High)
	require.Equal(t, 27800.0, sealed[0].Low)
	require.Equal(t, 28400.0, sealed[0].Close)
	require.InDelta(t, 120.0, sealed[0].Volume, 1e-9)
	require.Equal(t, 28700.0, sealed[3].Close)
}

func TestDriver_DeterministicReplay(t *testing.T) {
	run := func() []core.Candle {
		driver, err := NewDriver(newTestFeed(t), "BTCUSDT", "1h", logger.Noop())
		require.NoError(t, err)

		var sealed []core.Candle
		driver.Subscribe(func(candle core.Candle) {
			sealed = append(sealed, candle)
		}, true)

		require.NoError(t, driver.Load(context.Background()))
		require.NoError(t, driver.Run(context.Background()))
		return sealed
	}

	require.Equal(t, run(), run())
}

func TestDriver_SkipMovesForwardOnly(t *testing.T) {
	driver, err := NewDriver(newTestFeed(t), "BTCUSDT", "1h", logger.Noop())
	require.NoError(t, err)

	var sealed int
	driver.Subscribe(func(core.Candle) { sealed++ }, true)

	require.NoError(t, driver.Load(context.Background()))

	require.Error(t, driver.Skip(-1))

	require.NoError(t, driver.Skip(2))
	require.Equal(t, 2, driver.Cursor())
	require.Equal(t, StatusPaused, driver.Status())
	// skipped bars flow through the pipeline, so the first bar sealed
	require.Equal(t, 1, sealed)

	// let the rest play out
	require.NoError(t, driver.Run(context.Background()))
	require.Equal(t, StatusFinished, driver.Status())
	require.Equal(t, 4, driver.Cursor())
	require.Equal(t, 4, sealed)
}

func TestDriver_SkipPastEndFinishes(t *testing.T) {
	driver, err := NewDriver(newTestFeed(t), "BTCUSDT", "1h", logger.Noop())
	require.NoError(t, err)

	require.NoError(t, driver.Load(context.Background()))
	require.NoError(t, driver.Skip(100))
	require.Equal(t, StatusFinished, driver.Status())
	require.Equal(t, 4, driver.Cursor())
}

func TestDriver_PauseAndResume(t *testing.T) {
	driver, err := NewDriver(newTestFeed(t), "BTCUSDT", "1h", logger.Noop(),
		WithThrottle(5*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, driver.Load(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- driver.Run(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	driver.Pause()

	// paused replay holds its cursor
	cursor := driver.Cursor()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, cursor, driver.Cursor())

	driver.Resume()
	require.NoError(t, <-done)
	require.Equal(t, StatusFinished, driver.Status())
}
