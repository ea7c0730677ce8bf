package core

import (
	"context"
	"time"
)

// Exchange combines market data access and order placement.
type Exchange interface {
	Broker
	Feeder
}

// Feeder provides market data: asset metadata, historical candles and a
// live trade stream. History is returned sorted ascending by open time,
// with gaps reflecting only genuine market inactivity.
type Feeder interface {
	AssetsInfo(pair string) AssetInfo
	LastQuote(ctx context.Context, pair string) (float64, error)
	CandlesByPeriod(ctx context.Context, pair, timeframe string, start, end time.Time) ([]Candle, error)
	CandlesByLimit(ctx context.Context, pair, timeframe string, limit int) ([]Candle, error)
	// TradesSubscription streams normalized trade observations for a pair.
	// Delivery is at-least-once; duplicates are tolerated downstream.
	TradesSubscription(ctx context.Context, pair string) (chan Observation, chan error)
}

// Broker is the order sink. All calls are fallible remote operations in
// live mode; the paper wallet implements the same surface in simulation.
type Broker interface {
	Account(ctx context.Context) (Account, error)
	Position(ctx context.Context, pair string) (asset, quote float64, err error)
	Order(ctx context.Context, pair string, id int64) (Order, error)
	Orders(ctx context.Context, pair string) ([]Order, error)
	CreateOrderMarket(ctx context.Context, side SideType, pair string, size float64) (Order, error)
	CreateOrderLimit(ctx context.Context, side SideType, pair string, size, limit float64) (Order, error)
	Cancel(ctx context.Context, order Order) error
}

// CandleSubscriber receives candles from the processing pipeline.
type CandleSubscriber interface {
	OnCandle(Candle)
}

// OrderSubscriber receives order updates from the order feed.
type OrderSubscriber interface {
	OnOrder(Order)
}

// Notifier receives human-readable trading events.
type Notifier interface {
	Notify(string)
	OnOrder(order Order)
	OnError(err error)
}

// NotifierWithStart is a notifier with its own receive loop.
type NotifierWithStart interface {
	Notifier
	Start()
}
