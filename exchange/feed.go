package exchange

import (
	"context"
	"errors"
	"sync"

	"github.com/StudioSol/set"
	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/logger"
)

// DataFeedConsumer processes candles emitted by a feed.
type DataFeedConsumer func(core.Candle)

// Subscription is one consumer attached to a feed key.
type Subscription struct {
	onCandleClose bool
	consumer      DataFeedConsumer
}

// DataFeed pairs the observation stream of one pair with its error
// channel.
type DataFeed struct {
	Data chan core.Observation
	Err  chan error
}

// DataFeedSubscription fans live observations through a per-pair
// normalizer and aggregator into candle consumers. Each pair runs one
// consumer goroutine, so candles of a pair are delivered strictly in
// arrival order; pairs are independent of each other. The observation
// channels are bounded by the feeder, which gives the pipeline
// backpressure instead of unbounded buffering.
type DataFeedSubscription struct {
	exchange                core.Feeder
	feeds                   *set.LinkedHashSetString
	dataFeeds               map[string]*DataFeed
	aggregators             map[string]*Aggregator
	subscriptionsByDataFeed map[string][]Subscription
	log                     logger.Logger
	mu                      sync.RWMutex
}

// NewDataFeed creates a feed subscription hub over a feeder.
func NewDataFeed(exchange core.Feeder, log logger.Logger) *DataFeedSubscription {
	return &DataFeedSubscription{
		exchange:                exchange,
		feeds:                   set.NewLinkedHashSetString(),
		log:                     log,
		dataFeeds:               make(map[string]*DataFeed),
		aggregators:             make(map[string]*Aggregator),
		subscriptionsByDataFeed: make(map[string][]Subscription),
	}
}

// Subscribe attaches a consumer to a pair and timeframe. Consumers with
// onCandleClose only receive sealed candles.
func (d *DataFeedSubscription) Subscribe(pair, timeframe string, consumer DataFeedConsumer, onCandleClose bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := feedKey(pair, timeframe)
	d.feeds.Add(key)
	d.subscriptionsByDataFeed[key] = append(d.subscriptionsByDataFeed[key], Subscription{
		onCandleClose: onCandleClose,
		consumer:      consumer,
	})
}

// Preload replays historical sealed candles to the subscribers of a pair,
// used to warm up indicators before live data starts.
func (d *DataFeedSubscription) Preload(pair, timeframe string, candles []core.Candle) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	d.log.Infof("preloading %d candles for %s-%s", len(candles), pair, timeframe)
	key := feedKey(pair, timeframe)

	for _, candle := range candles {
		if !candle.Complete {
			continue
		}

		for _, subscription := range d.subscriptionsByDataFeed[key] {
			subscription.consumer(candle)
		}
	}
}

// Connect opens the observation stream and aggregator for every
// subscribed feed.
func (d *DataFeedSubscription) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log.Info("Connecting to the exchange.")

	for feed := range d.feeds.Iter() {
		pair, timeframe := pairTimeframeFromKey(feed)

		aggregator, err := NewAggregator(pair, timeframe)
		if err != nil {
			return err
		}

		obsChan, errChan := d.exchange.TradesSubscription(ctx, pair)
		d.aggregators[feed] = aggregator
		d.dataFeeds[feed] = &DataFeed{
			Data: obsChan,
			Err:  errChan,
		}
	}

	return nil
}

// Start connects and launches one processing goroutine per feed. When
// waitForCompletion is set it blocks until every stream ends.
func (d *DataFeedSubscription) Start(ctx context.Context, waitForCompletion bool) error {
	if err := d.Connect(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup

	d.mu.RLock()
	for key, feed := range d.dataFeeds {
		wg.Add(1)
		go d.processFeed(ctx, key, feed, &wg)
	}
	d.mu.RUnlock()

	d.log.Info("Data feed connected.")

	if waitForCompletion {
		wg.Wait()
	}

	return nil
}

func (d *DataFeedSubscription) processFeed(ctx context.Context, key string, feed *DataFeed, wg *sync.WaitGroup) {
	defer wg.Done()

	d.mu.RLock()
	aggregator := d.aggregators[key]
	d.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return

		case obs, ok := <-feed.Data:
			if !ok {
				// Stream ended: seal whatever is in flight so the
				// last window is not lost.
				if final := aggregator.Flush(); final != nil {
					d.publish(key, *final)
				}
				return
			}

			sealed, err := aggregator.Ingest(obs)
			if err != nil {
				// Stale ticks are dropped; sealed history stays intact.
				if errors.Is(err, core.ErrStaleObservation) {
					d.log.WithField("pair", obs.Pair).Warn(err)
					continue
				}
				d.log.Error("dataFeedSubscription/processFeed: ", err)
				continue
			}

			if sealed != nil {
				d.publish(key, *sealed)
			}
			d.publish(key, aggregator.Current())

		case err, ok := <-feed.Err:
			if !ok {
				return
			}

			if err != nil {
				d.log.Error("dataFeedSubscription/processFeed: ", err)
			}
		}
	}
}

func (d *DataFeedSubscription) publish(key string, candle core.Candle) {
	if candle.IsEmpty() {
		return
	}

	d.mu.RLock()
	subscriptions := d.subscriptionsByDataFeed[key]
	d.mu.RUnlock()

	for _, subscription := range subscriptions {
		if subscription.onCandleClose && !candle.Complete {
			continue
		}
		subscription.consumer(candle)
	}
}
