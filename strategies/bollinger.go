package strategies

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/indicator"
	"github.com/stratrun/stratrun/strategy"
)

// BollingerBounce buys closes below the lower Bollinger band and sells
// closes above the upper band.
type BollingerBounce struct {
	timeframe string
	period    int
	stdDev    float64
	upperName string
	lowerName string
}

// NewBollingerBounce creates a Bollinger band mean-reversion strategy
// on the given timeframe.
func NewBollingerBounce(timeframe string) *BollingerBounce {
	return &BollingerBounce{timeframe: timeframe}
}

func (s *BollingerBounce) Name() string {
	return "bollinger_bounce"
}

func (s *BollingerBounce) Timeframe() string {
	return s.timeframe
}

func (s *BollingerBounce) WarmupPeriod() int {
	return s.period
}

func (s *BollingerBounce) Options() []strategy.Option {
	return []strategy.Option{
		{Name: "period", Type: strategy.OptionTypeInt, Default: 20, Min: 2, Max: 500},
		{Name: "std_dev", Type: strategy.OptionTypeFloat, Default: 2.0, Min: 0.5, Max: 5},
	}
}

func (s *BollingerBounce) OnStart(params strategy.Params) error {
	s.period = params.Int("period")
	s.stdDev = params.Float("std_dev")
	s.upperName = fmt.Sprintf("boll_upper_%d", s.period)
	s.lowerName = fmt.Sprintf("boll_lower_%d", s.period)
	return nil
}

func (s *BollingerBounce) Indicators() []indicator.Indicator {
	return []indicator.Indicator{
		indicator.BollingerBands(s.period, s.stdDev),
	}
}

func (s *BollingerBounce) OnCandle(df *core.Dataframe) core.Signal {
	upper := df.Metadata[s.upperName]
	lower := df.Metadata[s.lowerName]
	if upper.Length() == 0 || math.IsNaN(upper.Last(0)) {
		return core.Hold(df.Pair)
	}

	close := df.Close.Last(0)
	if close < lower.Last(0) {
		return core.Signal{Action: core.SignalBuy, Pair: df.Pair}
	}
	if close > upper.Last(0) {
		return core.Signal{Action: core.SignalSell, Pair: df.Pair}
	}
	return core.Hold(df.Pair)
}

func (s *BollingerBounce) OnStop() {}
