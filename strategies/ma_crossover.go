// Package strategies provides ready-to-run strategies built on the
// incremental indicator engine. They double as reference material for
// writing new strategies.
package strategies

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/indicator"
	"github.com/stratrun/stratrun/strategy"
)

// MACrossover buys when a fast simple moving average crosses above a
// slow one and sells on the opposite cross.
type MACrossover struct {
	timeframe  string
	fastPeriod int
	slowPeriod int
	fastName   string
	slowName   string
}

// NewMACrossover creates a moving average crossover strategy on the
// given timeframe.
func NewMACrossover(timeframe string) *MACrossover {
	return &MACrossover{timeframe: timeframe}
}

func (s *MACrossover) Name() string {
	return "ma_crossover"
}

func (s *MACrossover) Timeframe() string {
	return s.timeframe
}

func (s *MACrossover) WarmupPeriod() int {
	return s.slowPeriod + 1
}

func (s *MACrossover) Options() []strategy.Option {
	return []strategy.Option{
		{Name: "fast_period", Type: strategy.OptionTypeInt, Default: 10, Min: 2, Max: 500},
		{Name: "slow_period", Type: strategy.OptionTypeInt, Default: 21, Min: 2, Max: 1000},
	}
}

func (s *MACrossover) OnStart(params strategy.Params) error {
	s.fastPeriod = params.Int("fast_period")
	s.slowPeriod = params.Int("slow_period")
	if s.fastPeriod >= s.slowPeriod {
		return fmt.Errorf("%w: fast_period must be below slow_period", core.ErrInvalidParameters)
	}
	s.fastName = fmt.Sprintf("sma_%d", s.fastPeriod)
	s.slowName = fmt.Sprintf("sma_%d", s.slowPeriod)
	return nil
}

func (s *MACrossover) Indicators() []indicator.Indicator {
	return []indicator.Indicator{
		indicator.SMA(s.fastPeriod),
		indicator.SMA(s.slowPeriod),
	}
}

func (s *MACrossover) OnCandle(df *core.Dataframe) core.Signal {
	fast := df.Metadata[s.fastName]
	slow := df.Metadata[s.slowName]
	if fast.Length() < 2 || math.IsNaN(fast.Last(1)) || math.IsNaN(slow.Last(1)) {
		return core.Hold(df.Pair)
	}

	if fast.Crossover(slow) {
		return core.Signal{Action: core.SignalBuy, Pair: df.Pair}
	}
	if fast.Crossunder(slow) {
		return core.Signal{Action: core.SignalSell, Pair: df.Pair}
	}
	return core.Hold(df.Pair)
}

func (s *MACrossover) OnStop() {}
