package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/stratrun/stratrun/core"
	"github.com/xhit/go-str2duration/v2"
)

// ErrInsufficientData is returned when a history request asks for more
// candles than the feed holds.
var ErrInsufficientData = errors.New("insufficient data")

var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
}

// PairFeed points a pair at a CSV history file.
type PairFeed struct {
	Pair      string
	File      string
	Timeframe string
}

// CSVFeed serves historical candles from CSV files. It implements
// core.Feeder so a backtest runs against the same surface as a live
// exchange; TradesSubscription replays each candle as a sequence of
// trade observations so the downstream aggregation path is identical in
// both modes.
type CSVFeed struct {
	Feeds               map[string]PairFeed
	CandlePairTimeFrame map[string][]core.Candle
}

// NewCSVFeed loads the given files and resamples them to the target
// timeframe.
func NewCSVFeed(targetTimeframe string, feeds ...PairFeed) (*CSVFeed, error) {
	csvFeed := &CSVFeed{
		Feeds:               make(map[string]PairFeed),
		CandlePairTimeFrame: make(map[string][]core.Candle),
	}

	for _, feed := range feeds {
		csvFeed.Feeds[feed.Pair] = feed

		candles, err := readCandlesFromCSV(feed)
		if err != nil {
			return nil, err
		}

		sourceKey := feedKey(feed.Pair, feed.Timeframe)
		csvFeed.CandlePairTimeFrame[sourceKey] = candles

		if err := csvFeed.resample(feed.Pair, feed.Timeframe, targetTimeframe); err != nil {
			return nil, err
		}
	}

	return csvFeed, nil
}

func readCandlesFromCSV(feed PairFeed) ([]core.Candle, error) {
	csvFile, err := os.Open(feed.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	csvLines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(csvLines) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInsufficientData, feed.File)
	}

	headerMap, additionalHeaders, hasCustomHeaders := parseHeaders(csvLines[0])
	if hasCustomHeaders {
		csvLines = csvLines[1:]
	}

	candles := make([]core.Candle, 0, len(csvLines))
	for _, line := range csvLines {
		candle, err := parseCandleFromLine(line, headerMap, additionalHeaders, hasCustomHeaders, feed.Pair)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

func parseHeaders(headers []string) (headerMap map[string]int, additional []string, hasCustomHeaders bool) {
	// A numeric first cell means the file has no header row.
	if _, err := strconv.Atoi(headers[0]); err == nil {
		return defaultHeaderMap, nil, false
	}

	headerMap = make(map[string]int)
	for index, header := range headers {
		headerMap[header] = index
		if _, exists := defaultHeaderMap[header]; !exists {
			additional = append(additional, header)
		}
	}

	return headerMap, additional, true
}

func parseCandleFromLine(line []string, headerMap map[string]int, additionalHeaders []string,
	hasCustomHeaders bool, pair string) (core.Candle, error) {
	timestamp, err := strconv.Atoi(line[headerMap["time"]])
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		Time:      time.Unix(int64(timestamp), 0).UTC(),
		UpdatedAt: time.Unix(int64(timestamp), 0).UTC(),
		Pair:      pair,
		Complete:  true,
	}

	if candle.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Volume, err = strconv.ParseFloat(line[headerMap["volume"]], 64); err != nil {
		return core.Candle{}, err
	}

	if hasCustomHeaders {
		candle.Metadata = make(map[string]float64, len(additionalHeaders))
		for _, header := range additionalHeaders {
			value, err := strconv.ParseFloat(line[headerMap[header]], 64)
			if err != nil {
				return core.Candle{}, err
			}
			candle.Metadata[header] = value
		}
	}

	return candle, nil
}

func isFirstCandlePeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	prev := t.Add(-fromDuration).UTC()
	return isLastCandlePeriod(prev, fromTimeframe, targetTimeframe)
}

func isLastCandlePeriod(t time.Time, fromTimeframe, targetTimeframe string) (bool, error) {
	if fromTimeframe == targetTimeframe {
		return true, nil
	}

	fromDuration, err := str2duration.ParseDuration(fromTimeframe)
	if err != nil {
		return false, err
	}

	targetDuration, err := str2duration.ParseDuration(targetTimeframe)
	if err != nil {
		return false, err
	}

	next := t.Add(fromDuration).UTC()
	return next.Truncate(targetDuration).Equal(next), nil
}

// resample groups source candles into target timeframe buckets.
func (c *CSVFeed) resample(pair, sourceTimeframe, targetTimeframe string) error {
	sourceKey := feedKey(pair, sourceTimeframe)
	targetKey := feedKey(pair, targetTimeframe)

	sourceCandles := c.CandlePairTimeFrame[sourceKey]
	if len(sourceCandles) == 0 {
		return nil
	}

	startIdx := 0
	for i := range sourceCandles {
		isFirst, err := isFirstCandlePeriod(sourceCandles[i].Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return err
		}
		if isFirst {
			startIdx = i
			break
		}
	}

	targetCandles, err := resampleCandles(sourceCandles[startIdx:], sourceTimeframe, targetTimeframe)
	if err != nil {
		return err
	}

	c.CandlePairTimeFrame[targetKey] = targetCandles
	return nil
}

func resampleCandles(sourceCandles []core.Candle, sourceTimeframe, targetTimeframe string) ([]core.Candle, error) {
	if len(sourceCandles) == 0 {
		return nil, nil
	}

	targetCandles := make([]core.Candle, 0, len(sourceCandles)/4)

	var currentCandle core.Candle
	inPeriod := false

	for _, candle := range sourceCandles {
		isLast, err := isLastCandlePeriod(candle.Time, sourceTimeframe, targetTimeframe)
		if err != nil {
			return nil, err
		}

		if !inPeriod {
			currentCandle = candle
			inPeriod = true
		} else {
			currentCandle.High = math.Max(currentCandle.High, candle.High)
			currentCandle.Low = math.Min(currentCandle.Low, candle.Low)
			currentCandle.Close = candle.Close
			currentCandle.Volume += candle.Volume
		}

		if isLast {
			currentCandle.Complete = true
			targetCandles = append(targetCandles, currentCandle)
			inPeriod = false
		}
	}

	// A trailing partial bucket is dropped, same as a live session that
	// ends mid-window.
	return targetCandles, nil
}

// Limit keeps only the candles within the trailing duration.
func (c *CSVFeed) Limit(duration time.Duration) *CSVFeed {
	for pair, candles := range c.CandlePairTimeFrame {
		if len(candles) == 0 {
			continue
		}

		start := candles[len(candles)-1].Time.Add(-duration)
		c.CandlePairTimeFrame[pair] = lo.Filter(candles, func(candle core.Candle, _ int) bool {
			return candle.Time.After(start)
		})
	}
	return c
}

// AssetsInfo returns permissive asset constraints; CSV history carries
// no exchange filters.
func (c CSVFeed) AssetsInfo(pair string) core.AssetInfo {
	asset, quote := SplitAssetQuote(pair)
	return core.AssetInfo{
		BaseAsset:          asset,
		QuoteAsset:         quote,
		MaxPrice:           math.MaxFloat64,
		MaxQuantity:        math.MaxFloat64,
		StepSize:           0.00000001,
		TickSize:           0.00000001,
		QuotePrecision:     8,
		BaseAssetPrecision: 8,
	}
}

// LastQuote is not available for file-based history.
func (c CSVFeed) LastQuote(_ context.Context, _ string) (float64, error) {
	return 0, errors.New("invalid operation")
}

// CandlesByPeriod returns candles within [start, end].
func (c CSVFeed) CandlesByPeriod(_ context.Context, pair, timeframe string,
	start, end time.Time) ([]core.Candle, error) {
	key := feedKey(pair, timeframe)
	result := make([]core.Candle, 0)

	for _, candle := range c.CandlePairTimeFrame[key] {
		if candle.Time.Before(start) || candle.Time.After(end) {
			continue
		}
		result = append(result, candle)
	}

	return result, nil
}

// CandlesByLimit consumes and returns the first limit candles, so a
// warmup preload does not replay the same bars again in the stream.
func (c *CSVFeed) CandlesByLimit(_ context.Context, pair, timeframe string, limit int) ([]core.Candle, error) {
	key := feedKey(pair, timeframe)

	if len(c.CandlePairTimeFrame[key]) < limit {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientData, pair)
	}

	result := c.CandlePairTimeFrame[key][:limit]
	c.CandlePairTimeFrame[key] = c.CandlePairTimeFrame[key][limit:]

	return result, nil
}

// TradesSubscription replays stored candles as trade observations. Each
// candle becomes four ticks (open, high, low, close) spread across its
// window, so aggregating the stream reconstructs the original OHLCV.
func (c CSVFeed) TradesSubscription(ctx context.Context, pair string) (chan core.Observation, chan error) {
	cobs := make(chan core.Observation)
	cerr := make(chan error)

	feed, ok := c.Feeds[pair]
	var key string
	if ok {
		key = feedKey(pair, feed.Timeframe)
	}

	go func() {
		defer close(cobs)
		defer close(cerr)

		if !ok {
			cerr <- fmt.Errorf("%w: no feed for %s", ErrInsufficientData, pair)
			return
		}

		window, err := str2duration.ParseDuration(feed.Timeframe)
		if err != nil {
			cerr <- fmt.Errorf("invalid timeframe %q: %w", feed.Timeframe, err)
			return
		}

		for _, candle := range c.CandlePairTimeFrame[key] {
			for _, obs := range CandleToObservations(candle, window) {
				select {
				case <-ctx.Done():
					return
				case cobs <- obs:
				}
			}
		}
	}()

	return cobs, cerr
}

// CandleToObservations decomposes a candle into the minimal tick
// sequence that aggregates back to it: open, high, low and close, each
// carrying a quarter of the volume. Ticks are spread over quarters of
// the candle's window so they all land inside it at any timeframe.
func CandleToObservations(candle core.Candle, window time.Duration) []core.Observation {
	quarter := candle.Volume / 4
	step := window / 4
	return []core.Observation{
		{Pair: candle.Pair, Price: candle.Open, Quantity: quarter, Time: candle.Time},
		{Pair: candle.Pair, Price: candle.High, Quantity: quarter, Time: candle.Time.Add(step)},
		{Pair: candle.Pair, Price: candle.Low, Quantity: quarter, Time: candle.Time.Add(2 * step)},
		{Pair: candle.Pair, Price: candle.Close, Quantity: quarter, Time: candle.Time.Add(3 * step)},
	}
}
