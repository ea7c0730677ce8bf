package strategy

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/indicator"
	"github.com/stratrun/stratrun/logger"
)

// Status is the lifecycle state of a strategy controller.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusRunning Status = "RUNNING"
	StatusStopped Status = "STOPPED"
)

// SignalHandler consumes the signals a running strategy emits.
type SignalHandler func(core.Signal)

// Controller drives one strategy instance over the candle stream of a
// pair. Candles are processed strictly sequentially under a single
// lock; a slow OnCandle delays later candles, it never skips them. A
// panic inside the strategy stops only this instance: the fault is
// recorded, the ledger it traded against is left as-is, and no further
// signals are emitted.
type Controller struct {
	mu sync.Mutex

	pair             string
	strategy         Strategy
	params           Params
	engine           *indicator.Engine
	dataframeManager *DataframeManager
	onSignal         SignalHandler
	log              logger.Logger

	status   Status
	faultErr error
}

// NewController validates the strategy parameters, hands them to the
// strategy and registers its indicators. OnStart runs here, before
// registration, because the indicators a strategy declares are derived
// from its parameters; a strategy that rejects its parameters fails
// construction. The returned controller is idle: candles warm its
// indicators and dataframe, but no signal is emitted until Start.
func NewController(pair string, strat Strategy, raw Params, onSignal SignalHandler,
	log logger.Logger) (*Controller, error) {

	params, err := ResolveParams(strat.Options(), raw)
	if err != nil {
		return nil, err
	}

	if err := strat.OnStart(params); err != nil {
		return nil, err
	}

	engine := indicator.NewEngine()
	for _, ind := range strat.Indicators() {
		if err := engine.Register(ind); err != nil {
			return nil, err
		}
	}

	return &Controller{
		pair:             pair,
		strategy:         strat,
		params:           params,
		engine:           engine,
		dataframeManager: NewDataframeManager(pair),
		onSignal:         onSignal,
		log:              log,
		status:           StatusIdle,
	}, nil
}

// Pair returns the pair this controller trades.
func (c *Controller) Pair() string {
	return c.pair
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the fault that stopped the strategy, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faultErr
}

// Params returns the resolved strategy parameters.
func (c *Controller) Params() Params {
	return c.params
}

// Start transitions the controller to running. From here on, sealed
// candles past the warmup period are evaluated by the strategy.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusIdle {
		return fmt.Errorf("cannot start strategy %s in status %s", c.strategy.Name(), c.status)
	}

	c.status = StatusRunning
	c.log.WithFields(map[string]any{
		"strategy": c.strategy.Name(),
		"pair":     c.pair,
	}).Info("strategy started")

	return nil
}

// Stop transitions the controller to stopped. Stopping an already
// stopped controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return
	}

	c.status = StatusStopped
	c.strategy.OnStop()
	c.log.WithField("strategy", c.strategy.Name()).Info("strategy stopped")
}

// OnCandle processes one candle. Sealed candles update the indicators
// and, once warmed up, run the strategy; partial candles only refresh
// the last dataframe row. Candles older than the newest recorded one
// are dropped.
func (c *Controller) OnCandle(candle core.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusStopped {
		return
	}

	if c.dataframeManager.IsLateCandle(candle) {
		c.log.WithField("pair", candle.Pair).Warnf("late candle dropped: %s", candle.Time)
		return
	}

	if !candle.Complete {
		c.dataframeManager.Update(candle)
		return
	}

	defined := c.engine.OnCandle(candle)
	if len(defined) > 0 {
		if candle.Metadata == nil {
			candle.Metadata = make(map[string]float64, len(defined))
		}
		for metric, value := range defined {
			candle.Metadata[metric] = value
		}
	}

	c.dataframeManager.Update(candle)

	if c.status != StatusRunning || !c.dataframeManager.HasSufficientData(c.strategy.WarmupPeriod()) {
		return
	}

	c.evaluate()
}

// evaluate runs one strategy step with panic isolation. Caller holds
// the lock.
func (c *Controller) evaluate() {
	defer func() {
		if r := recover(); r != nil {
			c.faultErr = fmt.Errorf("%w: %v", core.ErrStrategyFault, r)
			c.status = StatusStopped
			c.log.WithFields(map[string]any{
				"strategy": c.strategy.Name(),
				"pair":     c.pair,
			}).Errorf("strategy panic: %v\n%s", r, debug.Stack())
			c.strategy.OnStop()
		}
	}()

	// The strategy sees the trailing warmup window, not the full
	// history, so evaluation cost stays flat over a long session.
	sample := c.dataframeManager.Sample(c.strategy.WarmupPeriod())
	signal := c.strategy.OnCandle(&sample)
	if signal.Action == core.SignalHold || signal.Action == "" {
		return
	}

	if signal.Pair == "" {
		signal.Pair = c.pair
	}

	c.onSignal(signal)
}
