// Package order routes strategy signals into orders, tracks positions
// and keeps per-pair trade statistics.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/logger"
)

// Status is the running state of the order controller.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Controller is the order router. It converts strategy signals into
// exchange orders under the one-position-per-pair rule, persists every
// order, publishes updates on the order feed and accumulates trade
// results. A rejected order (insufficient balance, sink failure) is
// reported and dropped; it never stops the strategy that emitted the
// signal.
type Controller struct {
	mu             sync.Mutex
	ctx            context.Context
	exchange       core.Exchange
	storage        core.Storage
	orderFeed      *Feed
	notifier       core.Notifier
	log            logger.Logger
	Results        map[string]*TradeSummary
	lastPrice      map[string]float64
	position       map[string]*Position
	positionSize   float64
	tickerInterval time.Duration
	finish         chan bool
	status         Status
}

// ControllerOption configures the order controller.
type ControllerOption func(*Controller)

// WithPositionSize sets the fraction of the free quote balance a
// default-sized entry spends.
func WithPositionSize(fraction float64) ControllerOption {
	return func(c *Controller) {
		c.positionSize = fraction
	}
}

// NewController creates an order controller bound to an exchange and
// order storage.
func NewController(ctx context.Context, exch core.Exchange, storage core.Storage,
	log logger.Logger, orderFeed *Feed, options ...ControllerOption) *Controller {

	controller := &Controller{
		ctx:            ctx,
		exchange:       exch,
		storage:        storage,
		orderFeed:      orderFeed,
		log:            log,
		Results:        make(map[string]*TradeSummary),
		lastPrice:      make(map[string]float64),
		position:       make(map[string]*Position),
		positionSize:   1.0,
		tickerInterval: time.Second,
		finish:         make(chan bool),
	}

	for _, option := range options {
		option(controller)
	}

	return controller
}

// SetNotifier configures a notifier for trading events.
func (c *Controller) SetNotifier(notifier core.Notifier) {
	c.notifier = notifier
}

// OnCandle records the last known price for a pair.
func (c *Controller) OnCandle(candle core.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPrice[candle.Pair] = candle.Close
}

// Status returns the current controller status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Position returns the open position for a pair, nil when flat.
func (c *Controller) OpenPosition(pair string) *Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[pair]
}

// Start launches the background reconciliation loop that polls pending
// orders for status changes.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.status == StatusRunning {
		c.mu.Unlock()
		return
	}
	c.status = StatusRunning
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.tickerInterval)
		for {
			select {
			case <-ticker.C:
				c.updateOrders(ctx)
			case <-c.finish:
				ticker.Stop()
				return
			}
		}
	}()

	c.log.Info("Order controller started.")
}

// Stop halts the reconciliation loop after a final pass.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.status != StatusRunning {
		c.mu.Unlock()
		return
	}
	c.status = StatusStopped
	c.mu.Unlock()

	c.updateOrders(ctx)
	c.finish <- true
	c.log.Info("Order controller stopped")
}

// OnSignal routes one strategy signal. With an open position, a
// same-side signal is skipped and an opposing signal closes the
// position with a single fill; with no position, the signal opens one.
func (c *Controller) OnSignal(ctx context.Context, signal core.Signal) {
	if signal.Action == core.SignalHold || signal.Action == "" {
		return
	}

	side := core.SideTypeBuy
	if signal.Action == core.SignalSell {
		side = core.SideTypeSell
	}

	c.mu.Lock()
	position := c.position[signal.Pair]
	c.mu.Unlock()

	if position != nil {
		if position.Side == side {
			c.log.WithField("pair", signal.Pair).
				Infof("signal %s skipped: position already open", signal.Action)
			return
		}

		// Closing uses the position quantity so the opposing signal
		// results in exactly one fill.
		if _, err := c.CreateOrderMarket(ctx, side, signal.Pair, position.Quantity); err != nil {
			c.notifyError(err)
		}
		return
	}

	quantity := signal.Quantity
	if quantity == 0 {
		var err error
		quantity, err = c.defaultQuantity(ctx, signal.Pair)
		if err != nil {
			c.notifyError(err)
			return
		}
	}

	if _, err := c.CreateOrderMarket(ctx, side, signal.Pair, quantity); err != nil {
		c.notifyError(err)
	}
}

// defaultQuantity sizes an entry from the free quote balance and the
// last traded price.
func (c *Controller) defaultQuantity(ctx context.Context, pair string) (float64, error) {
	c.mu.Lock()
	price := c.lastPrice[pair]
	c.mu.Unlock()

	if price <= 0 {
		return 0, fmt.Errorf("no price for %s yet", pair)
	}

	asset, quote := exchange.SplitAssetQuote(pair)
	account, err := c.exchange.Account(ctx)
	if err != nil {
		return 0, err
	}

	_, quoteBalance := account.GetBalance(asset, quote)
	quantity := quoteBalance.Free * c.positionSize / price
	if quantity <= 0 {
		return 0, &exchange.OrderError{
			Err:      core.ErrInsufficientBalance,
			Pair:     pair,
			Quantity: quantity,
		}
	}

	return quantity, nil
}

// PendingOrders returns the persisted orders of a pair still waiting on
// the exchange, oldest update first.
func (c *Controller) PendingOrders(ctx context.Context, pair string) ([]*core.Order, error) {
	return c.storage.Orders(ctx,
		core.WithPair(pair),
		core.WithStatusIn(
			core.OrderStatusTypeNew,
			core.OrderStatusTypePartiallyFilled,
			core.OrderStatusTypePendingCancel,
		),
	)
}

// Account retrieves the trading account.
func (c *Controller) Account(ctx context.Context) (core.Account, error) {
	return c.exchange.Account(ctx)
}

// Position retrieves the held asset and quote amounts for a pair.
func (c *Controller) Position(ctx context.Context, pair string) (asset, quote float64, err error) {
	return c.exchange.Position(ctx, pair)
}

// LastQuote retrieves the most recent price for a pair.
func (c *Controller) LastQuote(pair string) (float64, error) {
	return c.exchange.LastQuote(c.ctx, pair)
}

// PositionValue values the current holdings of a pair at the last
// price.
func (c *Controller) PositionValue(ctx context.Context, pair string) (float64, error) {
	asset, _, err := c.exchange.Position(ctx, pair)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	price := c.lastPrice[pair]
	c.mu.Unlock()
	return asset * price, nil
}

// Order retrieves one order from the exchange.
func (c *Controller) Order(ctx context.Context, pair string, id int64) (core.Order, error) {
	return c.exchange.Order(ctx, pair, id)
}

// CreateOrderMarket places a market order, persists it and publishes it
// on the order feed.
func (c *Controller) CreateOrderMarket(ctx context.Context, side core.SideType, pair string, size float64) (core.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Infof("Creating MARKET %s order for %s", side, pair)
	order, err := c.exchange.CreateOrderMarket(ctx, side, pair, size)
	if err != nil {
		if errors.Is(err, core.ErrInsufficientBalance) {
			c.log.WithField("pair", pair).Warnf("order rejected: %v", err)
		}
		return core.Order{}, err
	}

	if err := c.storage.CreateOrder(ctx, &order); err != nil {
		c.notifyErrorLocked(fmt.Errorf("%w: %v", core.ErrOrderSink, err))
		return core.Order{}, err
	}

	c.processTrade(&order)
	go c.orderFeed.Publish(order, true)
	c.log.Infof("[ORDER CREATED] %s", order)
	return order, nil
}

// CreateOrderLimit places a limit order, persists it and publishes it.
func (c *Controller) CreateOrderLimit(ctx context.Context, side core.SideType, pair string, size, limit float64) (core.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Infof("Creating LIMIT %s order for %s", side, pair)
	order, err := c.exchange.CreateOrderLimit(ctx, side, pair, size, limit)
	if err != nil {
		return core.Order{}, err
	}

	if err := c.storage.CreateOrder(ctx, &order); err != nil {
		c.notifyErrorLocked(fmt.Errorf("%w: %v", core.ErrOrderSink, err))
		return core.Order{}, err
	}

	go c.orderFeed.Publish(order, true)
	c.log.Infof("[ORDER CREATED] %s", order)
	return order, nil
}

// Cancel cancels an order and records the pending cancellation.
func (c *Controller) Cancel(ctx context.Context, order core.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Infof("Cancelling order for %s", order.Pair)
	if err := c.exchange.Cancel(ctx, order); err != nil {
		return err
	}

	order.Status = core.OrderStatusTypePendingCancel
	if err := c.storage.UpdateOrder(ctx, &order); err != nil {
		c.notifyErrorLocked(err)
		return err
	}

	c.log.Infof("[ORDER CANCELED] %s", order)
	return nil
}

// updateOrders reconciles pending orders against the exchange.
func (c *Controller) updateOrders(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	orders, err := c.storage.Orders(ctx, core.WithStatusIn(
		core.OrderStatusTypeNew,
		core.OrderStatusTypePartiallyFilled,
		core.OrderStatusTypePendingCancel,
	))
	if err != nil {
		c.notifyErrorLocked(err)
		return
	}

	var updatedOrders []core.Order
	for _, order := range orders {
		excOrder, err := c.exchange.Order(ctx, order.Pair, order.ExchangeID)
		if err != nil {
			c.log.WithField("id", order.ExchangeID).Error("orderController/get: ", err)
			continue
		}

		if excOrder.Status == order.Status {
			continue
		}

		excOrder.ID = order.ID
		if err := c.storage.UpdateOrder(ctx, &excOrder); err != nil {
			c.notifyErrorLocked(err)
			continue
		}

		c.log.Infof("[ORDER %s] %s", excOrder.Status, excOrder)
		updatedOrders = append(updatedOrders, excOrder)
	}

	for _, processOrder := range updatedOrders {
		c.processTrade(&processOrder)
		c.orderFeed.Publish(processOrder, false)
	}
}

// processTrade updates volume, positions and trade results for a
// filled order. Caller holds the lock.
func (c *Controller) processTrade(order *core.Order) {
	if order.Status != core.OrderStatusTypeFilled {
		return
	}

	if _, ok := c.Results[order.Pair]; !ok {
		c.Results[order.Pair] = &TradeSummary{Pair: order.Pair}
	}
	c.Results[order.Pair].Volume += order.Price * order.Quantity

	position, ok := c.position[order.Pair]
	if !ok {
		c.position[order.Pair] = NewPosition(order)
		return
	}

	result, closed := position.Update(order)
	if closed {
		delete(c.position, order.Pair)
	}

	if result != nil {
		c.recordTradeResult(order.Pair, result)
		c.notifyTradeResult(order.Pair, result)
	}
}

func (c *Controller) recordTradeResult(pair string, result *TradeResult) {
	summary := c.Results[pair]

	if result.ProfitPercent >= 0 {
		if result.Side == core.SideTypeBuy {
			summary.WinLong = append(summary.WinLong, result.ProfitValue)
			summary.WinLongPercent = append(summary.WinLongPercent, result.ProfitPercent)
		} else {
			summary.WinShort = append(summary.WinShort, result.ProfitValue)
			summary.WinShortPercent = append(summary.WinShortPercent, result.ProfitPercent)
		}
	} else {
		if result.Side == core.SideTypeBuy {
			summary.LoseLong = append(summary.LoseLong, result.ProfitValue)
			summary.LoseLongPercent = append(summary.LoseLongPercent, result.ProfitPercent)
		} else {
			summary.LoseShort = append(summary.LoseShort, result.ProfitValue)
			summary.LoseShortPercent = append(summary.LoseShortPercent, result.ProfitPercent)
		}
	}
}

func (c *Controller) notifyTradeResult(pair string, result *TradeResult) {
	_, quote := exchange.SplitAssetQuote(pair)

	c.notifyLocked(fmt.Sprintf("[PROFIT] %f %s (%f %%)\n",
		result.ProfitValue, quote, result.ProfitPercent*100), true)
	c.notifyLocked(c.Results[pair].String())
}

func (c *Controller) notifyLocked(message string, withLogger ...bool) {
	if len(withLogger) > 0 && withLogger[0] {
		c.log.Info(message)
	} else {
		fmt.Println(message)
	}

	if c.notifier != nil {
		c.notifier.Notify(message)
	}
}

func (c *Controller) notifyError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyErrorLocked(err)
}

func (c *Controller) notifyErrorLocked(err error) {
	c.log.Error(err)
	if c.notifier != nil {
		c.notifier.OnError(err)
	}
}
