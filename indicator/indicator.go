// Package indicator implements incremental technical indicators. Each
// indicator consumes sealed candles one at a time and maintains its own
// running state, so updating on a new candle is constant-time no matter
// how much history has been processed.
package indicator

import (
	"fmt"
	"math"

	"github.com/stratrun/stratrun/core"
)

// Indicator is an incremental metric calculator. Update is called once
// per sealed candle; the returned map holds only the metrics that are
// defined at this point of the stream. Metrics the indicator has not
// warmed up yet are simply absent.
type Indicator interface {
	Metrics() []string
	Update(candle core.Candle) map[string]float64
}

// Engine owns a set of indicators for one pair and timeframe, feeding
// them sealed candles and recording their output series. Every metric
// series has exactly one value per processed candle; positions where a
// metric was not yet defined hold NaN, so series stay index-aligned with
// the candle history.
type Engine struct {
	indicators []Indicator
	series     map[string]core.Series[float64]
	count      int
}

// NewEngine creates an empty indicator engine.
func NewEngine() *Engine {
	return &Engine{
		series: make(map[string]core.Series[float64]),
	}
}

// Register adds an indicator. A metric name that is already registered
// is rejected, which catches the same indicator being added twice.
func (e *Engine) Register(indicator Indicator) error {
	for _, metric := range indicator.Metrics() {
		if _, exists := e.series[metric]; exists {
			return fmt.Errorf("%w: metric %q already registered", core.ErrInvalidParameters, metric)
		}
	}

	for _, metric := range indicator.Metrics() {
		e.series[metric] = make(core.Series[float64], 0)
	}
	e.indicators = append(e.indicators, indicator)
	return nil
}

// Metrics returns the names of all registered metric series.
func (e *Engine) Metrics() []string {
	metrics := make([]string, 0, len(e.series))
	for _, indicator := range e.indicators {
		metrics = append(metrics, indicator.Metrics()...)
	}
	return metrics
}

// OnCandle feeds a sealed candle to every indicator and returns the
// metrics that are defined for it. Incomplete candles are ignored so
// partial-bar updates never leak into indicator state.
func (e *Engine) OnCandle(candle core.Candle) map[string]float64 {
	if !candle.Complete {
		return nil
	}

	defined := make(map[string]float64)
	for _, indicator := range e.indicators {
		values := indicator.Update(candle)

		for _, metric := range indicator.Metrics() {
			value, ok := values[metric]
			if !ok {
				value = math.NaN()
			}
			e.series[metric] = append(e.series[metric], value)
			if ok {
				defined[metric] = value
			}
		}
	}

	e.count++
	return defined
}

// Count returns how many sealed candles have been processed.
func (e *Engine) Count() int {
	return e.count
}

// Series returns the full history of one metric, NaN where undefined.
func (e *Engine) Series(metric string) core.Series[float64] {
	return e.series[metric]
}
