package exchange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
)

func TestSplitAssetQuote(t *testing.T) {
	testCases := []struct {
		pair  string
		asset string
		quote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"ETHBTC", "ETH", "BTC"},
		{"btcusdt", "BTC", "USDT"},
		{"SOLBRL", "SOL", "BRL"},
		{"UNKNOWN", "UNKNOWN", ""},
	}

	for _, tc := range testCases {
		asset, quote := SplitAssetQuote(tc.pair)
		require.Equal(t, tc.asset, asset, tc.pair)
		require.Equal(t, tc.quote, quote, tc.pair)
	}
}

func TestOrderError_Unwrap(t *testing.T) {
	err := &OrderError{Err: core.ErrInsufficientBalance, Pair: "BTCUSDT", Quantity: 1}

	require.ErrorIs(t, err, core.ErrInsufficientBalance)

	var orderErr *OrderError
	require.True(t, errors.As(error(err), &orderErr))
	require.Equal(t, "BTCUSDT", orderErr.Pair)
}

func TestFeedKeyRoundTrip(t *testing.T) {
	key := feedKey("BTCUSDT", "1h")
	pair, timeframe := pairTimeframeFromKey(key)
	require.Equal(t, "BTCUSDT", pair)
	require.Equal(t, "1h", timeframe)
}
