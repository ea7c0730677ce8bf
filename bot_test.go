package stratrun_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun"
	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/logger"
	"github.com/stratrun/stratrun/order"
	"github.com/stratrun/stratrun/storage"
	"github.com/stratrun/stratrun/strategies"
	"github.com/stratrun/stratrun/strategy"
)

// writeCandleCSV writes hourly flat candles, one per close, starting at
// 2021-01-01 00:00 UTC.
func writeCandleCSV(t *testing.T, closes []float64) string {
	t.Helper()

	file := filepath.Join(t.TempDir(), "BTCUSDT-1h.csv")
	out, err := os.Create(file)
	require.NoError(t, err)
	defer out.Close()

	_, err = fmt.Fprintln(out, "time,open,high,low,close,volume")
	require.NoError(t, err)

	start := int64(1609459200)
	for i, close := range closes {
		_, err = fmt.Fprintf(out, "%d,%v,%v,%v,%v,4\n",
			start+int64(i)*3600, close, close, close, close)
		require.NoError(t, err)
	}

	return file
}

// Runs a full backtest through the public surface: CSV history into the
// data feed, a crossover strategy sized by the order controller, fills
// settled by the paper wallet and orders persisted in storage.
func TestBot_BacktestMACrossover(t *testing.T) {
	ctx := context.Background()

	// fast SMA(2) crosses above the slow SMA(3) at bars 4 and 9 and
	// below at bar 6
	closes := []float64{100, 100, 100, 100, 110, 120, 90, 80, 70, 110, 120}

	csvFeed, err := exchange.NewCSVFeed("1h", exchange.PairFeed{
		Pair:      "BTCUSDT",
		File:      writeCandleCSV(t, closes),
		Timeframe: "1h",
	})
	require.NoError(t, err)

	memory, err := storage.FromMemory()
	require.NoError(t, err)

	wallet := exchange.NewPaperWallet(ctx, "USDT", logger.Noop(),
		exchange.WithPaperAsset("USDT", 10000),
		exchange.WithCommission(0.001),
		exchange.WithDataFeed(csvFeed),
	)

	bot, err := stratrun.NewBot(ctx,
		&core.Settings{Pairs: []string{"BTCUSDT"}},
		wallet,
		strategies.NewMACrossover("1h"),
		stratrun.WithBacktest(wallet),
		stratrun.WithStorage(memory),
		stratrun.WithLogger(logger.Noop()),
		stratrun.WithParams(strategy.Params{"fast_period": 2, "slow_period": 3}),
		stratrun.WithOrderControllerOptions(order.WithPositionSize(0.5)),
	)
	require.NoError(t, err)

	require.NoError(t, bot.Run(ctx))

	// Entries are sized against the close of the previous sealed bar,
	// fills settle at the close of the signal bar.
	orders, err := memory.Orders(ctx, core.WithPair("BTCUSDT"))
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for _, o := range orders {
		require.Equal(t, core.OrderTypeMarket, o.Type)
		require.Equal(t, core.OrderStatusTypeFilled, o.Status)
	}

	require.Equal(t, core.SideTypeBuy, orders[0].Side)
	require.Equal(t, 110.0, orders[0].Price)
	require.InDelta(t, 50.0, orders[0].Quantity, 1e-9) // 10000 * 0.5 / 100

	require.Equal(t, core.SideTypeSell, orders[1].Side)
	require.Equal(t, 90.0, orders[1].Price)
	require.InDelta(t, 50.0, orders[1].Quantity, 1e-9)

	require.Equal(t, core.SideTypeBuy, orders[2].Side)
	require.Equal(t, 110.0, orders[2].Price)
	require.InDelta(t, 8990.0*0.5/70, orders[2].Quantity, 1e-6)

	account, err := wallet.Account(ctx)
	require.NoError(t, err)
	assetBalance, quoteBalance := account.GetBalance("BTC", "USDT")

	// 10000 - 50*110*1.001 + 50*90*0.999 - (8990*0.5/70)*110*1.001
	require.InDelta(t, 1919.365, quoteBalance.Free, 1e-6)
	require.InDelta(t, 0, quoteBalance.Lock, 1e-9)
	require.InDelta(t, 8990.0*0.5/70, assetBalance.Free, 1e-6)
	require.InDelta(t, 0, assetBalance.Lock, 1e-9)

	// One round trip closed at a loss: in at 110, out at 90, both fees
	// charged against the result.
	summary := bot.Controller().Results["BTCUSDT"]
	require.NotNil(t, summary)
	require.Empty(t, summary.Win())
	require.Len(t, summary.Lose(), 1)
	require.InDelta(t, -1010.0, summary.Lose()[0], 1e-6)

	position := bot.Controller().OpenPosition("BTCUSDT")
	require.NotNil(t, position)
	require.Equal(t, core.SideTypeBuy, position.Side)
	require.InDelta(t, 8990.0*0.5/70, position.Quantity, 1e-6)
}
