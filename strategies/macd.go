package strategies

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/indicator"
	"github.com/stratrun/stratrun/strategy"
)

// MACDCross trades crossings of the MACD line against its signal line.
type MACDCross struct {
	timeframe    string
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	lineName     string
	signalName   string
}

// NewMACDCross creates a MACD line/signal crossover strategy on the
// given timeframe.
func NewMACDCross(timeframe string) *MACDCross {
	return &MACDCross{timeframe: timeframe}
}

func (s *MACDCross) Name() string {
	return "macd_cross"
}

func (s *MACDCross) Timeframe() string {
	return s.timeframe
}

func (s *MACDCross) WarmupPeriod() int {
	return s.slowPeriod + s.signalPeriod
}

func (s *MACDCross) Options() []strategy.Option {
	return []strategy.Option{
		{Name: "fast_period", Type: strategy.OptionTypeInt, Default: 12, Min: 2, Max: 500},
		{Name: "slow_period", Type: strategy.OptionTypeInt, Default: 26, Min: 2, Max: 1000},
		{Name: "signal_period", Type: strategy.OptionTypeInt, Default: 9, Min: 2, Max: 500},
	}
}

func (s *MACDCross) OnStart(params strategy.Params) error {
	s.fastPeriod = params.Int("fast_period")
	s.slowPeriod = params.Int("slow_period")
	s.signalPeriod = params.Int("signal_period")
	if s.fastPeriod >= s.slowPeriod {
		return fmt.Errorf("%w: fast_period must be below slow_period", core.ErrInvalidParameters)
	}
	suffix := fmt.Sprintf("%d_%d_%d", s.fastPeriod, s.slowPeriod, s.signalPeriod)
	s.lineName = "macd_" + suffix
	s.signalName = "macd_signal_" + suffix
	return nil
}

func (s *MACDCross) Indicators() []indicator.Indicator {
	return []indicator.Indicator{
		indicator.MACD(s.fastPeriod, s.slowPeriod, s.signalPeriod),
	}
}

func (s *MACDCross) OnCandle(df *core.Dataframe) core.Signal {
	line := df.Metadata[s.lineName]
	signal := df.Metadata[s.signalName]
	if line.Length() < 2 || math.IsNaN(line.Last(1)) || math.IsNaN(signal.Last(1)) {
		return core.Hold(df.Pair)
	}

	if line.Crossover(signal) {
		return core.Signal{Action: core.SignalBuy, Pair: df.Pair}
	}
	if line.Crossunder(signal) {
		return core.Signal{Action: core.SignalSell, Pair: df.Pair}
	}
	return core.Hold(df.Pair)
}

func (s *MACDCross) OnStop() {}
