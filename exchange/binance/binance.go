// Package binance adapts the Binance spot API to the exchange
// interfaces used by the rest of the engine.
package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/logger"
)

// Binance rejects orders exceeding the account balance with this code.
const apiErrInsufficientBalance = -2010

// maxKlinesPerRequest is the Binance hard limit per klines call.
const maxKlinesPerRequest = 1000

// Exchange is the Binance spot market client.
type Exchange struct {
	client     *binance.Client
	assetsInfo map[string]core.AssetInfo
	log        logger.Logger
}

// Option configures the Exchange client.
type Option func(*Exchange)

// WithCredentials sets the API credentials.
func WithCredentials(key, secret string) Option {
	return func(e *Exchange) {
		e.client = binance.NewClient(key, secret)
	}
}

// WithTestNet points the client at the Binance testnet.
func WithTestNet() Option {
	return func(_ *Exchange) {
		binance.UseTestnet = true
	}
}

// NewExchange creates a Binance spot client, verifies connectivity and
// loads the exchange trading rules.
func NewExchange(ctx context.Context, log logger.Logger, options ...Option) (*Exchange, error) {
	binance.WebsocketKeepalive = true

	e := &Exchange{
		client:     binance.NewClient("", ""),
		assetsInfo: make(map[string]core.AssetInfo),
		log:        log,
	}

	for _, option := range options {
		option(e)
	}

	if err := e.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	exchangeInfo, err := e.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	for _, info := range exchangeInfo.Symbols {
		assetInfo := core.AssetInfo{
			BaseAsset:          info.BaseAsset,
			QuoteAsset:         info.QuoteAsset,
			BaseAssetPrecision: info.BaseAssetPrecision,
			QuotePrecision:     info.QuotePrecision,
		}

		for _, filter := range info.Filters {
			typ, ok := filter["filterType"]
			if !ok {
				continue
			}

			if typ == string(binance.SymbolFilterTypeLotSize) {
				assetInfo.MinQuantity, _ = strconv.ParseFloat(filter["minQty"].(string), 64)
				assetInfo.MaxQuantity, _ = strconv.ParseFloat(filter["maxQty"].(string), 64)
				assetInfo.StepSize, _ = strconv.ParseFloat(filter["stepSize"].(string), 64)
			}

			if typ == string(binance.SymbolFilterTypePriceFilter) {
				assetInfo.MinPrice, _ = strconv.ParseFloat(filter["minPrice"].(string), 64)
				assetInfo.MaxPrice, _ = strconv.ParseFloat(filter["maxPrice"].(string), 64)
				assetInfo.TickSize, _ = strconv.ParseFloat(filter["tickSize"].(string), 64)
			}
		}

		e.assetsInfo[info.Symbol] = assetInfo
	}

	log.Info("Using Binance exchange")
	return e, nil
}

// AssetsInfo returns the trading rules for a pair.
func (e *Exchange) AssetsInfo(pair string) core.AssetInfo {
	return e.assetsInfo[pair]
}

// LastQuote returns the close of the most recent minute candle.
func (e *Exchange) LastQuote(ctx context.Context, pair string) (float64, error) {
	candles, err := e.CandlesByLimit(ctx, pair, "1m", 1)
	if err != nil || len(candles) < 1 {
		return 0, err
	}
	return candles[0].Close, nil
}

func (e *Exchange) formatQuantity(pair string, value float64) string {
	info, ok := e.assetsInfo[pair]
	if !ok {
		return strconv.FormatFloat(value, 'f', 8, 64)
	}

	step := info.StepSize
	precision := 0
	for step < 1 {
		step *= 10
		precision++
	}
	return strconv.FormatFloat(value, 'f', precision, 64)
}

func (e *Exchange) formatPrice(pair string, value float64) string {
	info, ok := e.assetsInfo[pair]
	if !ok {
		return strconv.FormatFloat(value, 'f', 8, 64)
	}

	tick := info.TickSize
	precision := 0
	for tick < 1 {
		tick *= 10
		precision++
	}
	return strconv.FormatFloat(value, 'f', precision, 64)
}

func (e *Exchange) validate(pair string, quantity float64) error {
	info, ok := e.assetsInfo[pair]
	if !ok {
		return fmt.Errorf("asset info not found for pair: %s", pair)
	}

	if quantity < info.MinQuantity || quantity > info.MaxQuantity {
		return &exchange.OrderError{
			Err:      core.ErrInvalidQuantity,
			Pair:     pair,
			Quantity: quantity,
		}
	}

	return nil
}

// wrapOrderError maps API failures to the engine's order errors, so
// callers can treat a rejected live order the same way as a rejected
// simulated one.
func wrapOrderError(err error, pair string, quantity float64) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == apiErrInsufficientBalance {
		return &exchange.OrderError{
			Err:      core.ErrInsufficientBalance,
			Pair:     pair,
			Quantity: quantity,
		}
	}
	return err
}

// CreateOrderMarket places a market order.
func (e *Exchange) CreateOrderMarket(ctx context.Context, side core.SideType, pair string, quantity float64) (core.Order, error) {
	if err := e.validate(pair, quantity); err != nil {
		return core.Order{}, err
	}

	order, err := e.client.NewCreateOrderService().
		Symbol(pair).
		Type(binance.OrderTypeMarket).
		Side(binance.SideType(side)).
		Quantity(e.formatQuantity(pair, quantity)).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return core.Order{}, wrapOrderError(err, pair, quantity)
	}

	cost, err := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if err != nil {
		return core.Order{}, err
	}

	quantity, err = strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return core.Order{}, err
	}

	var fee float64
	for _, fill := range order.Fills {
		f, _ := strconv.ParseFloat(fill.Commission, 64)
		fee += f
	}

	return core.Order{
		ExchangeID: order.OrderID,
		CreatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		Pair:       order.Symbol,
		Side:       core.SideType(order.Side),
		Type:       core.OrderType(order.Type),
		Status:     core.OrderStatusType(order.Status),
		Price:      cost / quantity,
		Quantity:   quantity,
		Fee:        fee,
	}, nil
}

// CreateOrderLimit places a limit order.
func (e *Exchange) CreateOrderLimit(ctx context.Context, side core.SideType, pair string, quantity, limit float64) (core.Order, error) {
	if err := e.validate(pair, quantity); err != nil {
		return core.Order{}, err
	}

	order, err := e.client.NewCreateOrderService().
		Symbol(pair).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Side(binance.SideType(side)).
		Quantity(e.formatQuantity(pair, quantity)).
		Price(e.formatPrice(pair, limit)).
		Do(ctx)
	if err != nil {
		return core.Order{}, wrapOrderError(err, pair, quantity)
	}

	price, err := strconv.ParseFloat(order.Price, 64)
	if err != nil {
		return core.Order{}, err
	}

	quantity, err = strconv.ParseFloat(order.OrigQuantity, 64)
	if err != nil {
		return core.Order{}, err
	}

	return core.Order{
		ExchangeID: order.OrderID,
		CreatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
		Pair:       pair,
		Side:       core.SideType(order.Side),
		Type:       core.OrderType(order.Type),
		Status:     core.OrderStatusType(order.Status),
		Price:      price,
		Quantity:   quantity,
	}, nil
}

// Cancel cancels an order.
func (e *Exchange) Cancel(ctx context.Context, order core.Order) error {
	_, err := e.client.NewCancelOrderService().
		Symbol(order.Pair).
		OrderID(order.ExchangeID).
		Do(ctx)
	return err
}

// Orders lists recent orders for a pair.
func (e *Exchange) Orders(ctx context.Context, pair string) ([]core.Order, error) {
	result, err := e.client.NewListOrdersService().
		Symbol(pair).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	orders := make([]core.Order, 0, len(result))
	for _, order := range result {
		orders = append(orders, convertBinanceOrder(order))
	}
	return orders, nil
}

// Order fetches one order by exchange ID.
func (e *Exchange) Order(ctx context.Context, pair string, id int64) (core.Order, error) {
	order, err := e.client.NewGetOrderService().
		Symbol(pair).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return core.Order{}, err
	}

	return convertBinanceOrder(order), nil
}

func convertBinanceOrder(order *binance.Order) core.Order {
	var price float64
	cost, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	quantity, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if cost > 0 && quantity > 0 {
		price = cost / quantity
	} else {
		price, _ = strconv.ParseFloat(order.Price, 64)
		quantity, _ = strconv.ParseFloat(order.OrigQuantity, 64)
	}

	return core.Order{
		ExchangeID: order.OrderID,
		Pair:       order.Symbol,
		CreatedAt:  time.Unix(0, order.Time*int64(time.Millisecond)),
		UpdatedAt:  time.Unix(0, order.UpdateTime*int64(time.Millisecond)),
		Side:       core.SideType(order.Side),
		Type:       core.OrderType(order.Type),
		Status:     core.OrderStatusType(order.Status),
		Price:      price,
		Quantity:   quantity,
	}
}

// Account fetches the account balances, skipping empty ones.
func (e *Exchange) Account(ctx context.Context) (core.Account, error) {
	acc, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return core.Account{}, err
	}

	balances := make([]core.Balance, 0, len(acc.Balances))
	for _, balance := range acc.Balances {
		free, err := strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return core.Account{}, err
		}
		locked, err := strconv.ParseFloat(balance.Locked, 64)
		if err != nil {
			return core.Account{}, err
		}

		if free == 0 && locked == 0 {
			continue
		}

		balances = append(balances, core.Balance{
			Asset: balance.Asset,
			Free:  free,
			Lock:  locked,
		})
	}

	return core.Account{Balances: balances}, nil
}

// Position returns the held asset and quote amounts for a pair.
func (e *Exchange) Position(ctx context.Context, pair string) (asset, quote float64, err error) {
	assetTick, quoteTick := exchange.SplitAssetQuote(pair)
	acc, err := e.Account(ctx)
	if err != nil {
		return 0, 0, err
	}

	assetBalance, quoteBalance := acc.GetBalance(assetTick, quoteTick)
	return assetBalance.Total(), quoteBalance.Total(), nil
}

// TradesSubscription streams aggregated trades as normalized
// observations. The websocket reconnects with exponential backoff;
// duplicates emitted across reconnects are dropped by the normalizer.
func (e *Exchange) TradesSubscription(ctx context.Context, pair string) (chan core.Observation, chan error) {
	obsChan := make(chan core.Observation)
	errChan := make(chan error)

	normalizer := exchange.NewNormalizer()
	retry := &backoff.Backoff{
		Min: 100 * time.Millisecond,
		Max: 10 * time.Second,
	}

	go func() {
		for {
			done, _, err := binance.WsAggTradeServe(pair, func(event *binance.WsAggTradeEvent) {
				retry.Reset()

				obs, ok, err := normalizer.Normalize(exchange.RawTick{
					Symbol:   event.Symbol,
					Price:    event.Price,
					Quantity: event.Quantity,
					TimeMs:   event.TradeTime,
				})
				if err != nil {
					e.log.WithField("pair", pair).Warnf("dropping trade event: %v", err)
					return
				}
				if !ok {
					return
				}

				obsChan <- obs
			}, func(err error) {
				errChan <- err
			})

			if err != nil {
				errChan <- err
				close(errChan)
				close(obsChan)
				return
			}

			select {
			case <-ctx.Done():
				close(errChan)
				close(obsChan)
				return
			case <-done:
				time.Sleep(retry.Duration())
			}
		}
	}()

	return obsChan, errChan
}

// CandlesByLimit fetches the most recent sealed candles for a pair.
func (e *Exchange) CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]core.Candle, error) {
	data, err := e.client.NewKlinesService().
		Symbol(pair).
		Interval(period).
		Limit(limit + 1). // +1 to discard the in-progress candle
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]core.Candle, 0, len(data))
	for i, d := range data {
		if i == len(data)-1 {
			break
		}
		candles = append(candles, convertKlineToCandle(pair, *d))
	}

	return candles, nil
}

// CandlesByPeriod fetches all candles in [start, end], paginating past
// the per-request kline limit.
func (e *Exchange) CandlesByPeriod(ctx context.Context, pair, period string,
	start, end time.Time) ([]core.Candle, error) {

	candles := make([]core.Candle, 0)
	cursor := start

	for cursor.Before(end) {
		data, err := e.client.NewKlinesService().
			Symbol(pair).
			Interval(period).
			StartTime(cursor.UnixNano() / int64(time.Millisecond)).
			EndTime(end.UnixNano() / int64(time.Millisecond)).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			break
		}

		for _, d := range data {
			candles = append(candles, convertKlineToCandle(pair, *d))
		}

		last := data[len(data)-1]
		cursor = time.Unix(0, last.CloseTime*int64(time.Millisecond)).Add(time.Millisecond)

		if len(data) < maxKlinesPerRequest {
			break
		}
	}

	return candles, nil
}

func convertKlineToCandle(pair string, k binance.Kline) core.Candle {
	t := time.Unix(0, k.OpenTime*int64(time.Millisecond)).UTC()
	candle := core.Candle{
		Pair:      pair,
		Time:      t,
		UpdatedAt: t,
		Metadata:  make(map[string]float64),
		Complete:  true,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}
