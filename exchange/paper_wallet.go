package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/logger"
)

// AssetValue is the value of an asset at a point in time.
type AssetValue struct {
	Time  time.Time
	Value float64
}

type assetInfo struct {
	Free float64
	Lock float64
}

// PaperWallet simulates order execution against a local ledger. It is
// exclusively owned by one running strategy instance per account mode;
// all mutation happens through fill application under a single lock, so
// replaying an identical candle sequence always produces an identical
// final ledger. A fill that would drive the quote balance below zero is
// rejected with core.ErrInsufficientBalance and leaves the ledger
// untouched.
type PaperWallet struct {
	mu sync.Mutex

	ctx            context.Context
	baseCoin       string
	commission     float64
	initialBalance float64
	realizedPnL    float64
	counter        atomic.Int64
	feeder         core.Feeder

	orders        []core.Order
	assets        map[string]*assetInfo
	avgLongPrice  map[string]float64
	avgShortPrice map[string]float64
	volume        map[string]float64

	lastCandle  map[string]core.Candle
	firstCandle map[string]core.Candle

	assetValues  map[string][]AssetValue
	equityValues []AssetValue

	log logger.Logger
}

// PaperWalletOption configures a PaperWallet.
type PaperWalletOption func(*PaperWallet)

// WithPaperAsset seeds the wallet with an initial asset amount.
func WithPaperAsset(asset string, amount float64) PaperWalletOption {
	return func(wallet *PaperWallet) {
		wallet.assets[asset] = &assetInfo{Free: amount}
	}
}

// WithCommission sets the flat commission rate applied to fill notional.
func WithCommission(rate float64) PaperWalletOption {
	return func(wallet *PaperWallet) {
		wallet.commission = rate
	}
}

// WithDataFeed wires the market data source the wallet delegates to.
func WithDataFeed(feeder core.Feeder) PaperWalletOption {
	return func(wallet *PaperWallet) {
		wallet.feeder = feeder
	}
}

const defaultCommission = 0.001

// NewPaperWallet creates a simulated wallet holding baseCoin as quote
// currency.
func NewPaperWallet(ctx context.Context, baseCoin string, log logger.Logger, options ...PaperWalletOption) *PaperWallet {
	wallet := PaperWallet{
		ctx:           ctx,
		baseCoin:      baseCoin,
		commission:    defaultCommission,
		log:           log,
		orders:        make([]core.Order, 0),
		assets:        make(map[string]*assetInfo),
		avgLongPrice:  make(map[string]float64),
		avgShortPrice: make(map[string]float64),
		volume:        make(map[string]float64),
		lastCandle:    make(map[string]core.Candle),
		firstCandle:   make(map[string]core.Candle),
		assetValues:   make(map[string][]AssetValue),
		equityValues:  make([]AssetValue, 0),
	}

	for _, option := range options {
		option(&wallet)
	}

	wallet.initialBalance = wallet.freeAmount(wallet.baseCoin)

	log.Info("Using paper wallet")
	log.Infof("Initial balance = %f %s", wallet.initialBalance, wallet.baseCoin)

	return &wallet
}

// ID generates a unique order ID.
func (p *PaperWallet) ID() int64 {
	return p.counter.Add(1)
}

// InitialBalance returns the quote balance the wallet started with.
func (p *PaperWallet) InitialBalance() float64 {
	return p.initialBalance
}

// RealizedPnL returns the accumulated profit of closed positions.
func (p *PaperWallet) RealizedPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realizedPnL
}

// EquityValues returns the wallet value history, one point per sealed
// candle.
func (p *PaperWallet) EquityValues() []AssetValue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equityValues
}

// AssetValues returns the value history of one asset.
func (p *PaperWallet) AssetValues(asset string) []AssetValue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assetValues[asset]
}

func (p *PaperWallet) freeAmount(asset string) float64 {
	info, ok := p.assets[asset]
	if !ok {
		return 0
	}
	return info.Free
}

func (p *PaperWallet) ensureAssetExists(asset string) {
	if _, ok := p.assets[asset]; !ok {
		p.assets[asset] = &assetInfo{}
	}
}

// MaxDrawdown returns the largest peak-to-trough equity loss and its
// time range.
func (p *PaperWallet) MaxDrawdown() (float64, time.Time, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.equityValues) < 1 {
		return 0, time.Time{}, time.Time{}
	}

	localMin := math.MaxFloat64
	localMinBase := p.equityValues[0].Value
	localMinStart := p.equityValues[0].Time
	localMinEnd := p.equityValues[0].Time

	globalMin := localMin
	globalMinBase := localMinBase
	globalMinStart := localMinStart
	globalMinEnd := localMinEnd

	for i := 1; i < len(p.equityValues); i++ {
		diff := p.equityValues[i].Value - p.equityValues[i-1].Value

		if localMin > 0 {
			localMin = diff
			localMinBase = p.equityValues[i-1].Value
			localMinStart = p.equityValues[i-1].Time
			localMinEnd = p.equityValues[i].Time
		} else {
			localMin += diff
			localMinEnd = p.equityValues[i].Time
		}

		if localMin < globalMin {
			globalMin = localMin
			globalMinBase = localMinBase
			globalMinStart = localMinStart
			globalMinEnd = localMinEnd
		}
	}

	return globalMin / globalMinBase, globalMinStart, globalMinEnd
}

// OnCandle updates the wallet with a new candle: pending limit orders are
// checked for fills and, when the candle is sealed, the equity history is
// extended.
func (p *PaperWallet) OnCandle(candle core.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastCandle[candle.Pair] = candle
	if _, ok := p.firstCandle[candle.Pair]; !ok {
		p.firstCandle[candle.Pair] = candle
	}

	if _, ok := p.volume[candle.Pair]; !ok {
		p.volume[candle.Pair] = 0
	}

	for i, order := range p.orders {
		if order.Pair != candle.Pair || order.Status != core.OrderStatusTypeNew {
			continue
		}
		p.processPendingOrder(&p.orders[i], candle)
	}

	if candle.Complete {
		p.updateEquityValues(candle)
	}
}

// processPendingOrder fills a resting limit order when the candle range
// reaches its price. Caller holds the lock.
func (p *PaperWallet) processPendingOrder(order *core.Order, candle core.Candle) {
	var fillPrice float64

	switch {
	case order.Side == core.SideTypeBuy && candle.Low <= order.Price:
		fillPrice = order.Price
	case order.Side == core.SideTypeSell && candle.High >= order.Price:
		fillPrice = order.Price
	default:
		return
	}

	asset, quote := SplitAssetQuote(order.Pair)
	p.ensureAssetExists(asset)
	p.ensureAssetExists(quote)

	notional := order.Quantity * fillPrice
	fee := notional * p.commission

	if order.Side == core.SideTypeBuy {
		// Placement locked notional plus commission, so the fill is
		// fully funded out of the locked amount.
		p.assets[quote].Lock -= notional + fee
		p.assets[asset].Free += order.Quantity
	} else {
		p.assets[asset].Lock -= order.Quantity
		p.assets[quote].Free += notional - fee
	}

	p.volume[candle.Pair] += notional
	p.settleFill(order.Side, order.Pair, order.Quantity, fillPrice, fee)

	order.UpdatedAt = candle.Time
	order.Status = core.OrderStatusTypeFilled
	order.Fee = fee
}

// settleFill updates average entry prices and accumulates realized
// profit on closing fills. Caller holds the lock.
func (p *PaperWallet) settleFill(side core.SideType, pair string, quantity, price, fee float64) {
	asset, quote := SplitAssetQuote(pair)

	held := 0.0
	if info := p.assets[asset]; info != nil {
		held = info.Free + info.Lock
	}
	// Position before this fill.
	if side == core.SideTypeBuy {
		held -= quantity
	} else {
		held += quantity
	}

	if held == 0 {
		if side == core.SideTypeBuy {
			p.avgLongPrice[pair] = price
		} else {
			p.avgShortPrice[pair] = price
		}
		return
	}

	if held > 0 && side == core.SideTypeBuy {
		positionValue := p.avgLongPrice[pair] * held
		p.avgLongPrice[pair] = (positionValue + quantity*price) / (held + quantity)
		return
	}

	if held > 0 && side == core.SideTypeSell {
		closed := math.Min(quantity, held)
		profit := (price-p.avgLongPrice[pair])*closed - fee
		percent := profit / (p.avgLongPrice[pair] * closed)
		p.realizedPnL += profit
		p.log.Infof("PROFIT = %.4f %s (%.2f %%)", profit, quote, percent*100.0)

		if quantity > held { // reversal into a short
			p.avgShortPrice[pair] = price
		}
		return
	}

	if held < 0 && side == core.SideTypeSell {
		positionValue := p.avgShortPrice[pair] * -held
		p.avgShortPrice[pair] = (positionValue + quantity*price) / (-held + quantity)
		return
	}

	if held < 0 && side == core.SideTypeBuy {
		closed := math.Min(quantity, -held)
		profit := (p.avgShortPrice[pair]-price)*closed - fee
		percent := profit / (p.avgShortPrice[pair] * closed)
		p.realizedPnL += profit
		p.log.Infof("PROFIT = %.4f %s (%.2f %%)", profit, quote, percent*100.0)

		if quantity > -held { // reversal into a long
			p.avgLongPrice[pair] = price
		}
	}
}

// updateEquityValues appends the current wallet value. Caller holds the
// lock.
func (p *PaperWallet) updateEquityValues(candle core.Candle) {
	var total float64

	for asset, info := range p.assets {
		if asset == p.baseCoin {
			continue
		}

		amount := info.Free + info.Lock
		pair := asset + p.baseCoin

		var assetValue float64
		if amount < 0 {
			v := math.Abs(amount)
			assetValue = 2*v*p.avgShortPrice[pair] - v*p.lastCandle[pair].Close
		} else {
			assetValue = amount * p.lastCandle[pair].Close
		}

		total += assetValue
		p.assetValues[asset] = append(p.assetValues[asset], AssetValue{
			Time:  candle.Time,
			Value: assetValue,
		})
	}

	base := p.assets[p.baseCoin]
	if base == nil {
		base = &assetInfo{}
	}
	p.equityValues = append(p.equityValues, AssetValue{
		Time:  candle.Time,
		Value: total + base.Free + base.Lock,
	})
}

// Account returns the wallet balances.
func (p *PaperWallet) Account(_ context.Context) (core.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	balances := make([]core.Balance, 0, len(p.assets))
	for asset, info := range p.assets {
		balances = append(balances, core.Balance{
			Asset: asset,
			Free:  info.Free,
			Lock:  info.Lock,
		})
	}

	return core.Account{Balances: balances}, nil
}

// Position returns the held asset and quote amounts for a pair.
func (p *PaperWallet) Position(ctx context.Context, pair string) (asset, quote float64, err error) {
	acc, err := p.Account(ctx)
	if err != nil {
		return 0, 0, err
	}

	assetTick, quoteTick := SplitAssetQuote(pair)
	assetBalance, quoteBalance := acc.GetBalance(assetTick, quoteTick)
	return assetBalance.Total(), quoteBalance.Total(), nil
}

// CreateOrderMarket fills a market order at the last candle close,
// applying commission on the notional. Buys that cannot cover
// notional plus commission are rejected without mutating the ledger.
func (p *PaperWallet) CreateOrderMarket(_ context.Context, side core.SideType, pair string, size float64) (core.Order, error) {
	if size <= 0 {
		return core.Order{}, core.ErrInvalidQuantity
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastCandle[pair]
	if !ok {
		return core.Order{}, fmt.Errorf("no price for %s yet", pair)
	}

	asset, quote := SplitAssetQuote(pair)
	p.ensureAssetExists(asset)
	p.ensureAssetExists(quote)

	price := last.Close
	notional := size * price
	fee := notional * p.commission

	if side == core.SideTypeBuy {
		if p.assets[quote].Free < notional+fee {
			return core.Order{}, &OrderError{
				Err:      core.ErrInsufficientBalance,
				Pair:     pair,
				Quantity: size,
			}
		}
		p.assets[quote].Free -= notional + fee
		p.assets[asset].Free += size
	} else {
		held := p.assets[asset].Free
		if held < size && p.assets[quote].Free <= 0 {
			// A short needs quote margin to be meaningful.
			return core.Order{}, &OrderError{
				Err:      core.ErrInsufficientBalance,
				Pair:     pair,
				Quantity: size,
			}
		}
		p.assets[asset].Free -= size
		p.assets[quote].Free += notional - fee
	}

	p.settleFill(side, pair, size, price, fee)

	if _, ok := p.volume[pair]; !ok {
		p.volume[pair] = 0
	}
	p.volume[pair] += notional

	order := core.Order{
		ExchangeID: p.ID(),
		CreatedAt:  last.Time,
		UpdatedAt:  last.Time,
		Pair:       pair,
		Side:       side,
		Type:       core.OrderTypeMarket,
		Status:     core.OrderStatusTypeFilled,
		Price:      price,
		Quantity:   size,
		Fee:        fee,
	}

	p.orders = append(p.orders, order)

	return order, nil
}

// CreateOrderLimit places a resting limit order. Buys lock the notional
// plus the commission the fill will charge, so a fill can never draw
// the quote balance negative; sells lock the asset quantity.
func (p *PaperWallet) CreateOrderLimit(_ context.Context, side core.SideType, pair string, size, limit float64) (core.Order, error) {
	if size <= 0 {
		return core.Order{}, core.ErrInvalidQuantity
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	asset, quote := SplitAssetQuote(pair)
	p.ensureAssetExists(asset)
	p.ensureAssetExists(quote)

	if side == core.SideTypeBuy {
		required := size * limit * (1 + p.commission)
		if p.assets[quote].Free < required {
			return core.Order{}, &OrderError{
				Err:      core.ErrInsufficientBalance,
				Pair:     pair,
				Quantity: size,
			}
		}
		p.assets[quote].Free -= required
		p.assets[quote].Lock += required
	} else {
		if p.assets[asset].Free < size {
			return core.Order{}, &OrderError{
				Err:      core.ErrInsufficientBalance,
				Pair:     pair,
				Quantity: size,
			}
		}
		p.assets[asset].Free -= size
		p.assets[asset].Lock += size
	}

	order := core.Order{
		ExchangeID: p.ID(),
		CreatedAt:  p.lastCandle[pair].Time,
		UpdatedAt:  p.lastCandle[pair].Time,
		Pair:       pair,
		Side:       side,
		Type:       core.OrderTypeLimit,
		Status:     core.OrderStatusTypeNew,
		Price:      limit,
		Quantity:   size,
	}

	p.orders = append(p.orders, order)

	return order, nil
}

// Cancel cancels a resting order and releases its locked funds.
func (p *PaperWallet) Cancel(_ context.Context, order core.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, o := range p.orders {
		if o.ExchangeID != order.ExchangeID {
			continue
		}
		if o.Status != core.OrderStatusTypeNew {
			return fmt.Errorf("order %d is not pending", o.ExchangeID)
		}

		p.orders[i].Status = core.OrderStatusTypeCanceled

		asset, quote := SplitAssetQuote(o.Pair)
		if o.Side == core.SideTypeBuy {
			amount := o.Price * o.Quantity * (1 + p.commission)
			p.assets[quote].Free += amount
			p.assets[quote].Lock -= amount
		} else {
			p.assets[asset].Free += o.Quantity
			p.assets[asset].Lock -= o.Quantity
		}

		return nil
	}

	return errors.New("order not found")
}

// Order looks up an order by exchange ID.
func (p *PaperWallet) Order(_ context.Context, _ string, id int64) (core.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, order := range p.orders {
		if order.ExchangeID == id {
			return order, nil
		}
	}

	return core.Order{}, errors.New("order not found")
}

// Orders returns all orders placed for a pair, oldest first.
func (p *PaperWallet) Orders(_ context.Context, pair string) ([]core.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	orders := make([]core.Order, 0)
	for _, order := range p.orders {
		if order.Pair == pair {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// Summary prints the final wallet state with returns and drawdown.
func (p *PaperWallet) Summary() {
	p.mu.Lock()

	var (
		total        float64
		marketChange float64
		volume       float64
	)

	fmt.Println("----- FINAL WALLET -----")

	for pair := range p.lastCandle {
		asset, quote := SplitAssetQuote(pair)
		info, ok := p.assets[asset]
		if !ok {
			continue
		}

		quantity := info.Free + info.Lock
		value := quantity * p.lastCandle[pair].Close
		if quantity < 0 {
			v := math.Abs(quantity)
			value = 2*v*p.avgShortPrice[pair] - v*p.lastCandle[pair].Close
		}
		total += value

		firstPrice := p.firstCandle[pair].Close
		lastPrice := p.lastCandle[pair].Close
		marketChange += (lastPrice - firstPrice) / firstPrice

		fmt.Printf("%.4f %s = %.4f %s\n", quantity, asset, value, quote)
	}

	avgMarketChange := marketChange / float64(len(p.lastCandle))
	baseCoinValue := 0.0
	if info, ok := p.assets[p.baseCoin]; ok {
		baseCoinValue = info.Free + info.Lock
	}
	profit := total + baseCoinValue - p.initialBalance
	realized := p.realizedPnL

	p.mu.Unlock()
	maxDrawDown, _, _ := p.MaxDrawdown()

	fmt.Printf("%.4f %s\n", baseCoinValue, p.baseCoin)
	fmt.Println()
	fmt.Println("----- RETURNS -----")
	fmt.Printf("START PORTFOLIO     = %.2f %s\n", p.initialBalance, p.baseCoin)
	fmt.Printf("FINAL PORTFOLIO     = %.2f %s\n", total+baseCoinValue, p.baseCoin)
	fmt.Printf("GROSS PROFIT        =  %f %s (%.2f%%)\n", profit, p.baseCoin, profit/p.initialBalance*100)
	fmt.Printf("REALIZED PNL        =  %f %s\n", realized, p.baseCoin)
	fmt.Printf("MARKET CHANGE (B&H) =  %.2f%%\n", avgMarketChange*100)
	fmt.Println()
	fmt.Println("------ RISK -------")
	fmt.Printf("MAX DRAWDOWN = %.2f %%\n", maxDrawDown*100)
	fmt.Println()
	fmt.Println("------ VOLUME -----")
	p.mu.Lock()
	for pair, vol := range p.volume {
		volume += vol
		fmt.Printf("%s         = %.2f %s\n", pair, vol, p.baseCoin)
	}
	p.mu.Unlock()
	fmt.Printf("TOTAL           = %.2f %s\n", volume, p.baseCoin)
	fmt.Println("-------------------")
}

// AssetsInfo returns permissive asset constraints for simulation.
func (p *PaperWallet) AssetsInfo(pair string) core.AssetInfo {
	asset, quote := SplitAssetQuote(pair)
	return core.AssetInfo{
		BaseAsset:          asset,
		QuoteAsset:         quote,
		MaxPrice:           math.MaxFloat64,
		MaxQuantity:        math.MaxFloat64,
		MinPrice:           0.00000001,
		MinQuantity:        0.00000001,
		StepSize:           0.00000001,
		TickSize:           0.00000001,
		QuotePrecision:     8,
		BaseAssetPrecision: 8,
	}
}

// LastQuote delegates to the data feed.
func (p *PaperWallet) LastQuote(ctx context.Context, pair string) (float64, error) {
	return p.feeder.LastQuote(ctx, pair)
}

// CandlesByPeriod delegates to the data feed.
func (p *PaperWallet) CandlesByPeriod(ctx context.Context, pair, timeframe string,
	start, end time.Time) ([]core.Candle, error) {
	return p.feeder.CandlesByPeriod(ctx, pair, timeframe, start, end)
}

// CandlesByLimit delegates to the data feed.
func (p *PaperWallet) CandlesByLimit(ctx context.Context, pair, timeframe string, limit int) ([]core.Candle, error) {
	return p.feeder.CandlesByLimit(ctx, pair, timeframe, limit)
}

// TradesSubscription delegates to the data feed.
func (p *PaperWallet) TradesSubscription(ctx context.Context, pair string) (chan core.Observation, chan error) {
	return p.feeder.TradesSubscription(ctx, pair)
}
