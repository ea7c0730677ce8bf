package indicator

import (
	"fmt"

	"github.com/stratrun/stratrun/core"
)

// SMA creates a simple moving average over the close price.
// period: the number of candles to average
func SMA(period int) Indicator {
	return &sma{
		name:   fmt.Sprintf("sma_%d", period),
		period: period,
		window: make([]float64, period),
	}
}

type sma struct {
	name   string
	period int
	window []float64
	sum    float64
	head   int
	filled int
}

func (s *sma) Metrics() []string {
	return []string{s.name}
}

func (s *sma) Update(candle core.Candle) map[string]float64 {
	if s.filled == s.period {
		s.sum -= s.window[s.head]
	} else {
		s.filled++
	}

	s.window[s.head] = candle.Close
	s.sum += candle.Close
	s.head = (s.head + 1) % s.period

	if s.filled < s.period {
		return nil
	}

	return map[string]float64{s.name: s.sum / float64(s.period)}
}
