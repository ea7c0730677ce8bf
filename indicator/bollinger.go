package indicator

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/core"
)

// BollingerBands creates Bollinger bands: a middle SMA plus upper and
// lower bands offset by stdDev sample standard deviations. Running sum
// and sum of squares over the window keep the update constant-time.
func BollingerBands(period int, stdDev float64) Indicator {
	suffix := fmt.Sprintf("%d", period)
	return &bollinger{
		upperName: "boll_upper_" + suffix,
		midName:   "boll_mid_" + suffix,
		lowerName: "boll_lower_" + suffix,
		period:    period,
		stdDev:    stdDev,
		window:    make([]float64, period),
	}
}

type bollinger struct {
	upperName string
	midName   string
	lowerName string
	period    int
	stdDev    float64
	window    []float64
	sum       float64
	sumSq     float64
	head      int
	filled    int
}

func (b *bollinger) Metrics() []string {
	return []string{b.upperName, b.midName, b.lowerName}
}

func (b *bollinger) Update(candle core.Candle) map[string]float64 {
	if b.filled == b.period {
		old := b.window[b.head]
		b.sum -= old
		b.sumSq -= old * old
	} else {
		b.filled++
	}

	b.window[b.head] = candle.Close
	b.sum += candle.Close
	b.sumSq += candle.Close * candle.Close
	b.head = (b.head + 1) % b.period

	if b.filled < b.period {
		return nil
	}

	n := float64(b.period)
	mean := b.sum / n

	// Sample variance; clamp tiny negatives from float cancellation.
	variance := (b.sumSq - b.sum*b.sum/n) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	offset := b.stdDev * math.Sqrt(variance)

	return map[string]float64{
		b.upperName: mean + offset,
		b.midName:   mean,
		b.lowerName: mean - offset,
	}
}
