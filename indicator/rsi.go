package indicator

import (
	"fmt"

	"github.com/stratrun/stratrun/core"
)

// RSI creates a relative strength index using Wilder's smoothing. The
// first value is emitted after period+1 closes: the seed averages the
// first period gains and losses, later values follow the smoothed
// recurrence.
func RSI(period int) Indicator {
	return &rsi{
		name:   fmt.Sprintf("rsi_%d", period),
		period: period,
	}
}

type rsi struct {
	name    string
	period  int
	prev    float64
	seen    int
	avgGain float64
	avgLoss float64
}

func (r *rsi) Metrics() []string {
	return []string{r.name}
}

func (r *rsi) Update(candle core.Candle) map[string]float64 {
	close := candle.Close
	if r.seen == 0 {
		r.prev = close
		r.seen++
		return nil
	}

	gain, loss := 0.0, 0.0
	if diff := close - r.prev; diff > 0 {
		gain = diff
	} else {
		loss = -diff
	}
	r.prev = close
	r.seen++

	switch {
	case r.seen <= r.period:
		// Accumulating the seed window.
		r.avgGain += gain
		r.avgLoss += loss
		return nil

	case r.seen == r.period+1:
		r.avgGain = (r.avgGain + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss + loss) / float64(r.period)

	default:
		n := float64(r.period)
		r.avgGain = (r.avgGain*(n-1) + gain) / n
		r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	}

	if r.avgLoss == 0 {
		return map[string]float64{r.name: 100.0}
	}

	rs := r.avgGain / r.avgLoss
	return map[string]float64{r.name: 100.0 - 100.0/(1.0+rs)}
}
