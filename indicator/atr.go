package indicator

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/core"
)

// ATR creates an average true range using Wilder's smoothing. The first
// value is emitted after period+1 candles: the seed averages the first
// period true ranges, later values follow the smoothed recurrence.
func ATR(period int) Indicator {
	return &atr{
		name:   fmt.Sprintf("atr_%d", period),
		period: period,
	}
}

type atr struct {
	name      string
	period    int
	prevClose float64
	seen      int
	value     float64
}

func (a *atr) Metrics() []string {
	return []string{a.name}
}

func (a *atr) Update(candle core.Candle) map[string]float64 {
	if a.seen == 0 {
		a.prevClose = candle.Close
		a.seen++
		return nil
	}

	trueRange := math.Max(candle.High-candle.Low,
		math.Max(math.Abs(candle.High-a.prevClose), math.Abs(candle.Low-a.prevClose)))
	a.prevClose = candle.Close
	a.seen++

	switch {
	case a.seen <= a.period:
		// Accumulating the seed window.
		a.value += trueRange
		return nil

	case a.seen == a.period+1:
		a.value = (a.value + trueRange) / float64(a.period)

	default:
		n := float64(a.period)
		a.value = (a.value*(n-1) + trueRange) / n
	}

	return map[string]float64{a.name: a.value}
}
