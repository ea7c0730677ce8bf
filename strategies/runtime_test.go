package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/logger"
	"github.com/stratrun/stratrun/strategy"
)

func hourlyCandle(i int, close float64) core.Candle {
	ts := time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
	return core.Candle{
		Pair:      "BTCUSDT",
		Time:      ts,
		UpdatedAt: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1,
		Complete:  true,
	}
}

// Every bundled strategy must construct a controller from its default
// parameters alone, with its indicators registered under the metric
// names OnCandle reads.
func TestBundledStrategies_ConstructControllers(t *testing.T) {
	for _, strat := range []strategy.Strategy{
		NewMACrossover("1h"),
		NewRSIReversal("1h"),
		NewMACDCross("1h"),
		NewBollingerBounce("1h"),
	} {
		_, err := strategy.NewController("BTCUSDT", strat, nil, func(core.Signal) {}, logger.Noop())
		require.NoError(t, err, strat.Name())
	}
}

func TestMACrossover_SignalsThroughController(t *testing.T) {
	var signals []core.Signal
	controller, err := strategy.NewController("BTCUSDT", NewMACrossover("1h"),
		strategy.Params{"fast_period": 2, "slow_period": 3},
		func(s core.Signal) { signals = append(signals, s) }, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, controller.Start())

	closes := []float64{100, 100, 100, 100, 90, 80, 120, 130, 140, 100, 80}
	for i, close := range closes {
		controller.OnCandle(hourlyCandle(i, close))
	}

	// sma_2 dips under sma_3, crosses back above on the rally and under
	// again on the fade
	require.Len(t, signals, 3)
	require.Equal(t, core.SignalSell, signals[0].Action)
	require.Equal(t, core.SignalBuy, signals[1].Action)
	require.Equal(t, core.SignalSell, signals[2].Action)
	require.Equal(t, "BTCUSDT", signals[0].Pair)
}

func TestRSIReversal_SignalsThroughController(t *testing.T) {
	var signals []core.Signal
	controller, err := strategy.NewController("BTCUSDT", NewRSIReversal("1h"),
		strategy.Params{"period": 2},
		func(s core.Signal) { signals = append(signals, s) }, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, controller.Start())

	closes := []float64{100, 90, 80, 70, 60, 90, 100, 110, 80, 60, 90}
	for i, close := range closes {
		controller.OnCandle(hourlyCandle(i, close))
	}

	require.Len(t, signals, 3)
	require.Equal(t, core.SignalBuy, signals[0].Action)
	require.Equal(t, core.SignalSell, signals[1].Action)
	require.Equal(t, core.SignalBuy, signals[2].Action)
}
