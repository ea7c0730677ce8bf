// Package backtest replays historical candles through the trading
// pipeline and downloads candle history for later replay.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/logger"
)

// Status is the replay state of a backtest driver.
type Status string

const (
	StatusLoaded   Status = "LOADED"
	StatusRunning  Status = "RUNNING"
	StatusPaused   Status = "PAUSED"
	StatusFinished Status = "FINISHED"
)

type consumer struct {
	onCandleClose bool
	fn            exchange.DataFeedConsumer
}

// Driver replays a fixed candle history for one pair. History is
// fetched exactly once at load time; the replay cursor only ever moves
// forward, and every bar goes through the same tick normalization and
// aggregation path as live data, so a backtest and a live session
// exercise identical code. Replaying the same history twice produces
// identical results bar for bar.
type Driver struct {
	mu   sync.Mutex
	cond *sync.Cond

	feeder    core.Feeder
	pair      string
	timeframe string
	start     time.Time
	end       time.Time

	candles    []core.Candle
	cursor     int
	aggregator *exchange.Aggregator
	consumers  []consumer

	throttle     time.Duration
	showProgress bool
	status       Status

	log logger.Logger
}

// DriverOption configures a backtest driver.
type DriverOption func(*Driver)

// WithThrottle delays the replay by a fixed duration per bar. Zero (the
// default) replays as fast as possible.
func WithThrottle(d time.Duration) DriverOption {
	return func(driver *Driver) {
		driver.throttle = d
	}
}

// WithPeriod restricts the replay to [start, end].
func WithPeriod(start, end time.Time) DriverOption {
	return func(driver *Driver) {
		driver.start = start
		driver.end = end
	}
}

// WithProgressBar renders a progress bar during the replay.
func WithProgressBar() DriverOption {
	return func(driver *Driver) {
		driver.showProgress = true
	}
}

// NewDriver creates a backtest driver over a history source.
func NewDriver(feeder core.Feeder, pair, timeframe string, log logger.Logger,
	options ...DriverOption) (*Driver, error) {

	aggregator, err := exchange.NewAggregator(pair, timeframe)
	if err != nil {
		return nil, err
	}

	driver := &Driver{
		feeder:     feeder,
		pair:       pair,
		timeframe:  timeframe,
		aggregator: aggregator,
		log:        log,
	}
	driver.cond = sync.NewCond(&driver.mu)

	for _, option := range options {
		option(driver)
	}

	return driver, nil
}

// Subscribe attaches a candle consumer. Consumers with onCandleClose
// only receive sealed candles.
func (d *Driver) Subscribe(fn exchange.DataFeedConsumer, onCandleClose bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, consumer{onCandleClose: onCandleClose, fn: fn})
}

// Load fetches the candle history exactly once. Any fetch failure, and
// an empty history, aborts the backtest before the first bar plays.
func (d *Driver) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.candles != nil {
		return fmt.Errorf("backtest for %s already loaded", d.pair)
	}

	start, end := d.start, d.end
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	if end.IsZero() {
		end = time.Now()
	}

	candles, err := d.feeder.CandlesByPeriod(ctx, d.pair, d.timeframe, start, end)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrHistoryFetch, err)
	}
	if len(candles) == 0 {
		return fmt.Errorf("%w: no candles for %s-%s", core.ErrHistoryFetch, d.pair, d.timeframe)
	}

	d.candles = candles
	d.status = StatusLoaded
	d.log.Infof("loaded %d candles for %s-%s", len(candles), d.pair, d.timeframe)
	return nil
}

// Status returns the replay state.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Cursor returns how many bars have been replayed.
func (d *Driver) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Pause suspends the replay after the bar in flight.
func (d *Driver) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status == StatusRunning {
		d.status = StatusPaused
	}
}

// Resume continues a paused replay.
func (d *Driver) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status == StatusPaused {
		d.status = StatusRunning
		d.cond.Broadcast()
	}
}

// Skip fast-forwards n bars. The skipped bars still flow through the
// full pipeline so indicators, strategy and ledger stay consistent;
// only the throttle delay is bypassed. The cursor never moves backward.
func (d *Driver) Skip(n int) error {
	if n < 0 {
		return errors.New("cannot seek backward")
	}

	d.mu.Lock()
	if d.status != StatusPaused && d.status != StatusLoaded {
		d.mu.Unlock()
		return fmt.Errorf("cannot skip in status %s", d.status)
	}
	if d.status == StatusLoaded {
		d.status = StatusPaused
	}

	for i := 0; i < n && d.cursor < len(d.candles); i++ {
		candle := d.candles[d.cursor]
		d.cursor++
		d.mu.Unlock()
		d.step(candle)
		d.mu.Lock()
	}

	if d.cursor >= len(d.candles) {
		d.finishLocked()
	}
	d.mu.Unlock()
	return nil
}

// Run replays the history from the current cursor until it is
// exhausted, blocking while paused. It returns when the replay
// finishes or the context is canceled.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	switch d.status {
	case StatusLoaded, StatusPaused:
		d.status = StatusRunning
	case StatusRunning:
		d.mu.Unlock()
		return errors.New("backtest already running")
	case StatusFinished:
		d.mu.Unlock()
		return errors.New("backtest already finished")
	default:
		d.mu.Unlock()
		return errors.New("backtest not loaded")
	}

	var bar *progressbar.ProgressBar
	if d.showProgress {
		bar = progressbar.Default(int64(len(d.candles)))
		_ = bar.Set(d.cursor)
	}
	d.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d.mu.Lock()
		for d.status == StatusPaused {
			d.cond.Wait()
		}
		if d.status != StatusRunning {
			d.mu.Unlock()
			return nil
		}

		if d.cursor >= len(d.candles) {
			d.finishLocked()
			d.mu.Unlock()
			if bar != nil {
				_ = bar.Close()
			}
			return nil
		}

		candle := d.candles[d.cursor]
		d.cursor++
		d.mu.Unlock()

		d.step(candle)
		if bar != nil {
			_ = bar.Add(1)
		}

		if d.throttle > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.throttle):
			}
		}
	}
}

// finishLocked seals the trailing window and marks the replay done.
// Caller holds the lock.
func (d *Driver) finishLocked() {
	if d.status == StatusFinished {
		return
	}

	if final := d.aggregator.Flush(); final != nil {
		candle := *final
		d.mu.Unlock()
		d.publish(candle)
		d.mu.Lock()
	}

	d.status = StatusFinished
	d.cond.Broadcast()
	d.log.Infof("backtest finished for %s-%s (%d candles)", d.pair, d.timeframe, d.cursor)
}

// step replays one historical bar as its tick sequence through the
// aggregation path.
func (d *Driver) step(candle core.Candle) {
	for _, obs := range exchange.CandleToObservations(candle, d.aggregator.Interval()) {
		sealed, err := d.aggregator.Ingest(obs)
		if err != nil {
			if errors.Is(err, core.ErrStaleObservation) {
				d.log.WithField("pair", obs.Pair).Warn(err)
				continue
			}
			d.log.Error("backtest/step: ", err)
			continue
		}

		if sealed != nil {
			d.publish(*sealed)
		}
		d.publish(d.aggregator.Current())
	}
}

func (d *Driver) publish(candle core.Candle) {
	if candle.IsEmpty() {
		return
	}

	d.mu.Lock()
	consumers := d.consumers
	d.mu.Unlock()

	for _, c := range consumers {
		if c.onCandleClose && !candle.Complete {
			continue
		}
		c.fn(candle)
	}
}
