package order

import (
	"sync"

	"github.com/stratrun/stratrun/core"
)

// FeedConsumer processes order events.
type FeedConsumer func(order core.Order)

// DataFeed carries order updates and errors for one pair.
type DataFeed struct {
	Data chan core.Order
	Err  chan error
}

// Subscription is one consumer attached to a pair.
type Subscription struct {
	onlyNewOrder bool
	consumer     FeedConsumer
}

// Feed is the order event bus: every created or updated order is
// published to the subscribers of its pair.
type Feed struct {
	mu                    sync.RWMutex
	OrderFeeds            map[string]*DataFeed
	SubscriptionsBySymbol map[string][]Subscription
}

// NewOrderFeed creates an empty order feed.
func NewOrderFeed() *Feed {
	return &Feed{
		OrderFeeds:            make(map[string]*DataFeed),
		SubscriptionsBySymbol: make(map[string][]Subscription),
	}
}

// Subscribe registers a consumer for order updates of a pair.
func (f *Feed) Subscribe(pair string, consumer FeedConsumer, onlyNewOrder bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.OrderFeeds[pair]; !ok {
		f.OrderFeeds[pair] = &DataFeed{
			Data: make(chan core.Order, 100),
			Err:  make(chan error, 100),
		}
	}

	f.SubscriptionsBySymbol[pair] = append(f.SubscriptionsBySymbol[pair], Subscription{
		onlyNewOrder: onlyNewOrder,
		consumer:     consumer,
	})
}

// Publish sends an order update to the subscribers of its pair. The
// send never blocks; with no reader the update is dropped.
func (f *Feed) Publish(order core.Order, _ bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if feed, ok := f.OrderFeeds[order.Pair]; ok {
		select {
		case feed.Data <- order:
		default:
		}
	}
}

// Start launches one delivery goroutine per registered pair.
func (f *Feed) Start() {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for pair, feed := range f.OrderFeeds {
		go f.processOrdersForPair(pair, feed)
	}
}

func (f *Feed) processOrdersForPair(pair string, feed *DataFeed) {
	for order := range feed.Data {
		f.mu.RLock()
		subscriptions := f.SubscriptionsBySymbol[pair]
		f.mu.RUnlock()

		for _, subscription := range subscriptions {
			subscription.consumer(order)
		}
	}
}

// Stop closes all feed channels and drops the subscriptions.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for pair, feed := range f.OrderFeeds {
		close(feed.Data)
		close(feed.Err)
		delete(f.OrderFeeds, pair)
	}

	f.SubscriptionsBySymbol = make(map[string][]Subscription)
}
