package strategies

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/indicator"
	"github.com/stratrun/stratrun/strategy"
)

// RSIReversal buys when the relative strength index leaves the oversold
// zone and sells when it falls out of the overbought zone.
type RSIReversal struct {
	timeframe  string
	period     int
	oversold   float64
	overbought float64
	metricName string
}

// NewRSIReversal creates an RSI mean-reversion strategy on the given
// timeframe.
func NewRSIReversal(timeframe string) *RSIReversal {
	return &RSIReversal{timeframe: timeframe}
}

func (s *RSIReversal) Name() string {
	return "rsi_reversal"
}

func (s *RSIReversal) Timeframe() string {
	return s.timeframe
}

func (s *RSIReversal) WarmupPeriod() int {
	return s.period + 2
}

func (s *RSIReversal) Options() []strategy.Option {
	return []strategy.Option{
		{Name: "period", Type: strategy.OptionTypeInt, Default: 14, Min: 2, Max: 500},
		{Name: "oversold", Type: strategy.OptionTypeFloat, Default: 30.0, Min: 0, Max: 100},
		{Name: "overbought", Type: strategy.OptionTypeFloat, Default: 70.0, Min: 0, Max: 100},
	}
}

func (s *RSIReversal) OnStart(params strategy.Params) error {
	s.period = params.Int("period")
	s.oversold = params.Float("oversold")
	s.overbought = params.Float("overbought")
	if s.oversold >= s.overbought {
		return fmt.Errorf("%w: oversold must be below overbought", core.ErrInvalidParameters)
	}
	s.metricName = fmt.Sprintf("rsi_%d", s.period)
	return nil
}

func (s *RSIReversal) Indicators() []indicator.Indicator {
	return []indicator.Indicator{indicator.RSI(s.period)}
}

func (s *RSIReversal) OnCandle(df *core.Dataframe) core.Signal {
	rsi := df.Metadata[s.metricName]
	if rsi.Length() < 2 || math.IsNaN(rsi.Last(1)) {
		return core.Hold(df.Pair)
	}

	current, previous := rsi.Last(0), rsi.Last(1)
	if previous <= s.oversold && current > s.oversold {
		return core.Signal{Action: core.SignalBuy, Pair: df.Pair}
	}
	if previous >= s.overbought && current < s.overbought {
		return core.Signal{Action: core.SignalSell, Pair: df.Pair}
	}
	return core.Hold(df.Pair)
}

func (s *RSIReversal) OnStop() {}
