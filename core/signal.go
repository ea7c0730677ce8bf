package core

// SignalAction is the decision a strategy emits for a candle.
type SignalAction string

const (
	SignalBuy  SignalAction = "BUY"
	SignalSell SignalAction = "SELL"
	SignalHold SignalAction = "HOLD"
)

// Signal is the transient output of one strategy step. It is consumed
// immediately by the order router and never stored.
type Signal struct {
	Action SignalAction
	Pair   string
	// Quantity is the asset amount to trade. Zero lets the router apply
	// its default sizing.
	Quantity float64
	Reason   string
}

// Hold builds a no-op signal for a pair.
func Hold(pair string) Signal {
	return Signal{Action: SignalHold, Pair: pair}
}
