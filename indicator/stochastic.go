package indicator

import (
	"fmt"

	"github.com/stratrun/stratrun/core"
)

// Stochastic creates a stochastic oscillator: %K positions the close
// inside the high/low range of the last kPeriod candles, %D is a
// dPeriod simple average of %K. A flat range reads as the neutral 50.
func Stochastic(kPeriod, dPeriod int) Indicator {
	suffix := fmt.Sprintf("%d_%d", kPeriod, dPeriod)
	return &stochastic{
		kName:   "stoch_k_" + suffix,
		dName:   "stoch_d_" + suffix,
		kPeriod: kPeriod,
		dPeriod: dPeriod,
		highs:   make([]float64, kPeriod),
		lows:    make([]float64, kPeriod),
		kValues: make([]float64, dPeriod),
	}
}

type stochastic struct {
	kName   string
	dName   string
	kPeriod int
	dPeriod int

	highs   []float64
	lows    []float64
	head    int
	filled  int
	kValues []float64
	kHead   int
	kFilled int
	kSum    float64
}

func (s *stochastic) Metrics() []string {
	return []string{s.kName, s.dName}
}

func (s *stochastic) Update(candle core.Candle) map[string]float64 {
	s.highs[s.head] = candle.High
	s.lows[s.head] = candle.Low
	s.head = (s.head + 1) % s.kPeriod
	if s.filled < s.kPeriod {
		s.filled++
	}

	if s.filled < s.kPeriod {
		return nil
	}

	highest, lowest := s.highs[0], s.lows[0]
	for i := 1; i < s.kPeriod; i++ {
		if s.highs[i] > highest {
			highest = s.highs[i]
		}
		if s.lows[i] < lowest {
			lowest = s.lows[i]
		}
	}

	k := 50.0
	if highest > lowest {
		k = 100 * (candle.Close - lowest) / (highest - lowest)
	}

	if s.kFilled == s.dPeriod {
		s.kSum -= s.kValues[s.kHead]
	} else {
		s.kFilled++
	}
	s.kValues[s.kHead] = k
	s.kSum += k
	s.kHead = (s.kHead + 1) % s.dPeriod

	values := map[string]float64{s.kName: k}
	if s.kFilled == s.dPeriod {
		values[s.dName] = s.kSum / float64(s.dPeriod)
	}
	return values
}
