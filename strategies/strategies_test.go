package strategies

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/strategy"
)

func resolve(t *testing.T, s strategy.Strategy, raw strategy.Params) {
	t.Helper()
	params, err := strategy.ResolveParams(s.Options(), raw)
	require.NoError(t, err)
	require.NoError(t, s.OnStart(params))
}

func TestMACrossover_Signals(t *testing.T) {
	s := NewMACrossover("1h")
	resolve(t, s, strategy.Params{"fast_period": 2, "slow_period": 3})

	df := &core.Dataframe{
		Pair:  "BTCUSDT",
		Close: core.Series[float64]{100, 101},
		Metadata: map[string]core.Series[float64]{
			"sma_2": {99, 102},
			"sma_3": {100, 100},
		},
	}
	signal := s.OnCandle(df)
	require.Equal(t, core.SignalBuy, signal.Action)
	require.Equal(t, "BTCUSDT", signal.Pair)

	df.Metadata["sma_2"] = core.Series[float64]{102, 98}
	signal = s.OnCandle(df)
	require.Equal(t, core.SignalSell, signal.Action)

	// both above, no cross
	df.Metadata["sma_2"] = core.Series[float64]{103, 104}
	signal = s.OnCandle(df)
	require.Equal(t, core.SignalHold, signal.Action)
}

func TestMACrossover_RejectsInvertedPeriods(t *testing.T) {
	s := NewMACrossover("1h")
	params, err := strategy.ResolveParams(s.Options(), strategy.Params{
		"fast_period": 30,
		"slow_period": 10,
	})
	require.NoError(t, err)
	require.ErrorIs(t, s.OnStart(params), core.ErrInvalidParameters)
}

func TestMACrossover_HoldsDuringWarmup(t *testing.T) {
	s := NewMACrossover("1h")
	resolve(t, s, nil)

	df := &core.Dataframe{
		Pair:  "BTCUSDT",
		Close: core.Series[float64]{100, 101},
		Metadata: map[string]core.Series[float64]{
			"sma_10": {math.NaN(), 100},
			"sma_21": {math.NaN(), math.NaN()},
		},
	}
	require.Equal(t, core.SignalHold, s.OnCandle(df).Action)
}

func TestRSIReversal_Signals(t *testing.T) {
	s := NewRSIReversal("1h")
	resolve(t, s, nil)

	df := &core.Dataframe{
		Pair: "BTCUSDT",
		Metadata: map[string]core.Series[float64]{
			"rsi_14": {28, 33},
		},
	}
	require.Equal(t, core.SignalBuy, s.OnCandle(df).Action)

	df.Metadata["rsi_14"] = core.Series[float64]{72, 65}
	require.Equal(t, core.SignalSell, s.OnCandle(df).Action)

	// still inside the band, nothing to do
	df.Metadata["rsi_14"] = core.Series[float64]{45, 55}
	require.Equal(t, core.SignalHold, s.OnCandle(df).Action)
}

func TestMACDCross_Signals(t *testing.T) {
	s := NewMACDCross("1h")
	resolve(t, s, nil)

	df := &core.Dataframe{
		Pair: "BTCUSDT",
		Metadata: map[string]core.Series[float64]{
			"macd_12_26_9":        {-0.5, 0.5},
			"macd_signal_12_26_9": {0, 0},
		},
	}
	require.Equal(t, core.SignalBuy, s.OnCandle(df).Action)

	df.Metadata["macd_12_26_9"] = core.Series[float64]{0.5, -0.5}
	require.Equal(t, core.SignalSell, s.OnCandle(df).Action)
}

func TestBollingerBounce_Signals(t *testing.T) {
	s := NewBollingerBounce("1h")
	resolve(t, s, nil)

	df := &core.Dataframe{
		Pair:  "BTCUSDT",
		Close: core.Series[float64]{95},
		Metadata: map[string]core.Series[float64]{
			"boll_upper_20": {110},
			"boll_lower_20": {98},
		},
	}
	require.Equal(t, core.SignalBuy, s.OnCandle(df).Action)

	df.Close = core.Series[float64]{112}
	require.Equal(t, core.SignalSell, s.OnCandle(df).Action)

	df.Close = core.Series[float64]{105}
	require.Equal(t, core.SignalHold, s.OnCandle(df).Action)
}
