package stratrun

import (
	"github.com/schollz/progressbar/v3"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/strategy"
)

// onCandle buffers incoming candles in the priority queue so the
// processing loop always consumes them in chronological order.
func (n *Bot) onCandle(candle core.Candle) {
	n.candleQueue.Push(candle)
}

// processCandle pushes one candle through the wallet, the strategy
// controller and the order controller.
func (n *Bot) processCandle(mode strategy.Mode, candle core.Candle) {
	if n.paperWallet != nil {
		n.paperWallet.OnCandle(candle)
	}

	if controller, ok := n.registry.Controller(mode, candle.Pair); ok {
		controller.OnCandle(candle)
	}

	if candle.Complete {
		n.orderController.OnCandle(candle)
	}
}

// processCandles drains the queue as candles arrive from live feeds.
func (n *Bot) processCandles(mode strategy.Mode) {
	for item := range n.candleQueue.PopLock() {
		n.processCandle(mode, item.(core.Candle))
	}
}

// backtestCandles drains the fully-buffered queue synchronously so a
// backtest over the same input always produces the same trades.
func (n *Bot) backtestCandles(mode strategy.Mode) {
	if first := n.candleQueue.Peek(); first != nil {
		n.log.Infof("Starting backtest from %s", first.(core.Candle).Time)
	}

	progressBar := progressbar.Default(int64(n.candleQueue.Len()))
	for n.candleQueue.Len() > 0 {
		candle := n.candleQueue.Pop().(core.Candle)
		n.processCandle(mode, candle)

		if err := progressBar.Add(1); err != nil {
			n.log.Warnf("update progressbar fail: %v", err)
		}
	}
}
