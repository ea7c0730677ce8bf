// Package exchange implements the market data pipeline: tick
// normalization, OHLC aggregation, live feed subscriptions and the
// simulated paper wallet.
package exchange

import (
	"fmt"
	"strings"
)

// OrderError wraps an order failure with its pair and quantity.
type OrderError struct {
	Err      error
	Pair     string
	Quantity float64
}

func (o *OrderError) Error() string {
	return fmt.Sprintf("order error: %v", o.Err)
}

func (o *OrderError) Unwrap() error {
	return o.Err
}

var quoteAssets = []string{
	"USDT", "USDC", "BUSD", "FDUSD", "TUSD", "DAI",
	"BTC", "ETH", "BNB", "EUR", "BRL", "AUD", "USD",
}

// SplitAssetQuote separates a pair like BTCUSDT into its base and quote
// assets using the list of known quote currencies.
func SplitAssetQuote(pair string) (asset, quote string) {
	pair = strings.ToUpper(pair)
	for _, q := range quoteAssets {
		if strings.HasSuffix(pair, q) && len(pair) > len(q) {
			return pair[:len(pair)-len(q)], q
		}
	}
	return pair, ""
}

func feedKey(pair, timeframe string) string {
	return fmt.Sprintf("%s--%s", pair, timeframe)
}

func pairTimeframeFromKey(key string) (pair, timeframe string) {
	parts := strings.Split(key, "--")
	return parts[0], parts[1]
}
