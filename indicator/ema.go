package indicator

import (
	"fmt"

	"github.com/stratrun/stratrun/core"
)

// EMA creates an exponential moving average over the close price,
// seeded with the first close and smoothed with k = 2/(period+1).
func EMA(period int) Indicator {
	return &ema{
		name:   fmt.Sprintf("ema_%d", period),
		k:      2.0 / float64(period+1),
		period: period,
	}
}

type ema struct {
	name   string
	k      float64
	period int
	value  float64
	seeded bool
}

func (e *ema) Metrics() []string {
	return []string{e.name}
}

func (e *ema) Update(candle core.Candle) map[string]float64 {
	e.value = e.next(candle.Close)
	return map[string]float64{e.name: e.value}
}

// next advances the recurrence without emitting, shared with MACD.
func (e *ema) next(sample float64) float64 {
	if !e.seeded {
		e.seeded = true
		e.value = sample
		return e.value
	}

	e.value = sample*e.k + e.value*(1-e.k)
	return e.value
}
