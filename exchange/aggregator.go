package exchange

import (
	"fmt"
	"time"

	"github.com/stratrun/stratrun/core"
	"github.com/xhit/go-str2duration/v2"
)

// Aggregator buckets observations of one pair into fixed-interval OHLC
// candles. The window of an observation is its timestamp floored to the
// timeframe. An observation belonging to a later window seals the open
// candle; one older than the open window start is rejected as stale, so
// sealed history is never altered retroactively. Gaps in the stream
// produce no synthetic candles.
type Aggregator struct {
	pair      string
	timeframe string
	interval  time.Duration
	current   *core.Candle
}

// NewAggregator creates an aggregator for one pair and timeframe. The
// timeframe uses the usual shorthand, eg 1m, 15m, 1h, 1d.
func NewAggregator(pair, timeframe string) (*Aggregator, error) {
	interval, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return nil, fmt.Errorf("invalid timeframe %q: %w", timeframe, err)
	}

	return &Aggregator{
		pair:      pair,
		timeframe: timeframe,
		interval:  interval,
	}, nil
}

// Timeframe returns the aggregation timeframe.
func (a *Aggregator) Timeframe() string {
	return a.timeframe
}

// Interval returns the timeframe as a duration.
func (a *Aggregator) Interval() time.Duration {
	return a.interval
}

// Ingest consumes one observation. It returns the sealed candle when the
// observation opens a later window, or nil while the current window is
// still accumulating. Stale observations return core.ErrStaleObservation
// wrapped with pair context; the open candle is left untouched.
func (a *Aggregator) Ingest(obs core.Observation) (*core.Candle, error) {
	windowStart := obs.Time.Truncate(a.interval)

	if a.current == nil {
		a.current = a.openCandle(windowStart, obs)
		return nil, nil
	}

	if windowStart.Before(a.current.Time) {
		return nil, fmt.Errorf("%w: %s tick at %s before open window %s",
			core.ErrStaleObservation, a.pair, obs.Time, a.current.Time)
	}

	if windowStart.After(a.current.Time) {
		sealed := *a.current
		sealed.Complete = true
		a.current = a.openCandle(windowStart, obs)
		return &sealed, nil
	}

	a.update(obs)
	return nil, nil
}

// Current returns a snapshot of the open candle with Complete unset.
// The zero candle is returned before the first observation arrives.
func (a *Aggregator) Current() core.Candle {
	if a.current == nil {
		return core.Candle{}
	}
	return *a.current
}

// Flush seals and returns the open candle without waiting for the next
// window. Used when a backtest or shutdown drains the pipeline.
func (a *Aggregator) Flush() *core.Candle {
	if a.current == nil {
		return nil
	}
	sealed := *a.current
	sealed.Complete = true
	a.current = nil
	return &sealed
}

func (a *Aggregator) openCandle(windowStart time.Time, obs core.Observation) *core.Candle {
	return &core.Candle{
		Pair:      a.pair,
		Time:      windowStart,
		UpdatedAt: obs.Time,
		Open:      obs.Price,
		High:      obs.Price,
		Low:       obs.Price,
		Close:     obs.Price,
		Volume:    obs.Quantity,
		Metadata:  make(map[string]float64),
	}
}

func (a *Aggregator) update(obs core.Observation) {
	c := a.current
	if obs.Price > c.High {
		c.High = obs.Price
	}
	if obs.Price < c.Low {
		c.Low = obs.Price
	}
	c.Close = obs.Price
	c.Volume += obs.Quantity
	c.UpdatedAt = obs.Time
}
