package indicator

import (
	"fmt"

	"github.com/stratrun/stratrun/core"
)

// MACD creates a moving average convergence divergence indicator. It
// emits three metrics: the MACD line (fast EMA minus slow EMA), the
// signal line (EMA of the MACD line) and the histogram (their
// difference).
func MACD(fast, slow, signal int) Indicator {
	suffix := fmt.Sprintf("%d_%d_%d", fast, slow, signal)
	return &macd{
		lineName:   "macd_" + suffix,
		signalName: "macd_signal_" + suffix,
		histName:   "macd_hist_" + suffix,
		fast:       ema{k: 2.0 / float64(fast+1)},
		slow:       ema{k: 2.0 / float64(slow+1)},
		signal:     ema{k: 2.0 / float64(signal+1)},
	}
}

type macd struct {
	lineName   string
	signalName string
	histName   string
	fast       ema
	slow       ema
	signal     ema
}

func (m *macd) Metrics() []string {
	return []string{m.lineName, m.signalName, m.histName}
}

func (m *macd) Update(candle core.Candle) map[string]float64 {
	line := m.fast.next(candle.Close) - m.slow.next(candle.Close)
	signal := m.signal.next(line)

	return map[string]float64{
		m.lineName:   line,
		m.signalName: signal,
		m.histName:   line - signal,
	}
}
