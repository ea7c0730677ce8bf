package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccount_GetBalance(t *testing.T) {
	account := Account{Balances: []Balance{
		{Asset: "BTC", Free: 1, Lock: 0.5},
		{Asset: "USDT", Free: 500},
	}}

	asset, quote := account.GetBalance("BTC", "USDT")
	require.Equal(t, 1.5, asset.Total())
	require.Equal(t, 500.0, quote.Free)

	missing, _ := account.GetBalance("ETH", "USDT")
	require.Zero(t, missing.Total())
}

func TestAccount_Equity(t *testing.T) {
	account := Account{Balances: []Balance{
		{Asset: "BTC", Free: 1, Lock: 1},
		{Asset: "USDT", Free: 500},
	}}

	total := account.Equity(func(asset string) (float64, bool) {
		if asset == "BTC" {
			return 100, true
		}
		return 0, false
	})

	// priced assets at their quote value, the rest at face value
	require.Equal(t, 700.0, total)
}
