package core

// Balance holds the available funds for one asset.
type Balance struct {
	Asset string
	Free  float64
	Lock  float64
}

// Total returns free plus locked funds.
func (b Balance) Total() float64 {
	return b.Free + b.Lock
}

// Account is a snapshot of all asset balances.
type Account struct {
	Balances []Balance
}

// GetBalance returns the balances for an asset/quote pair. Missing assets
// yield zero balances.
func (a Account) GetBalance(asset, quote string) (assetBalance, quoteBalance Balance) {
	for _, balance := range a.Balances {
		switch balance.Asset {
		case asset:
			assetBalance = balance
		case quote:
			quoteBalance = balance
		}
	}
	return
}

// Equity returns the sum of all balances valued with the given price
// lookup. Assets without a price contribute their raw amount.
func (a Account) Equity(price func(asset string) (float64, bool)) float64 {
	var total float64
	for _, balance := range a.Balances {
		if p, ok := price(balance.Asset); ok {
			total += balance.Total() * p
			continue
		}
		total += balance.Total()
	}
	return total
}
