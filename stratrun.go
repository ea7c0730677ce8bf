// Package stratrun wires the market data pipeline, strategy runtime and
// order routing into a runnable trading bot for backtesting and live
// execution.
package stratrun

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/logger"
	"github.com/stratrun/stratrun/logger/zerolog"
	"github.com/stratrun/stratrun/metric"
	"github.com/stratrun/stratrun/notification"
	"github.com/stratrun/stratrun/order"
	"github.com/stratrun/stratrun/storage"
	"github.com/stratrun/stratrun/strategy"
)

const defaultDatabase = "stratrun.db"

// Bot runs one strategy over the pairs in the settings, either against
// historical data in backtest mode or against a live exchange.
type Bot struct {
	settings *core.Settings
	storage  core.Storage
	exchange core.Exchange
	strategy strategy.Strategy
	params   strategy.Params
	notifier core.Notifier
	telegram core.NotifierWithStart
	log      logger.Logger

	orderFeed       *order.Feed
	orderController *order.Controller
	dataFeed        *exchange.DataFeedSubscription
	paperWallet     *exchange.PaperWallet
	candleQueue     *core.PriorityQueue
	registry        *strategy.Registry

	candleSubscribers []core.CandleSubscriber
	orderSubscribers  []core.OrderSubscriber
	controllerOptions []order.ControllerOption

	backtest bool
}

// Option configures the bot at construction time.
type Option func(*Bot)

// WithBacktest puts the bot in backtest mode over a paper wallet. The
// candle queue is drained synchronously so results are deterministic.
func WithBacktest(wallet *exchange.PaperWallet) Option {
	return func(bot *Bot) {
		bot.backtest = true
		bot.paperWallet = wallet
	}
}

// WithPaperWallet runs live data against a simulated wallet.
func WithPaperWallet(wallet *exchange.PaperWallet) Option {
	return func(bot *Bot) {
		bot.paperWallet = wallet
	}
}

// WithStorage overrides the default order storage.
func WithStorage(storage core.Storage) Option {
	return func(bot *Bot) {
		bot.storage = storage
	}
}

// WithLogger overrides the default logger.
func WithLogger(log logger.Logger) Option {
	return func(bot *Bot) {
		bot.log = log
	}
}

// WithParams sets the strategy parameters. Missing parameters take the
// declared defaults.
func WithParams(params strategy.Params) Option {
	return func(bot *Bot) {
		bot.params = params
	}
}

// WithNotifier registers a notifier for orders and errors.
func WithNotifier(notifier core.Notifier) Option {
	return func(bot *Bot) {
		bot.notifier = notifier
	}
}

// WithCandleSubscription subscribes a consumer to the candle feed.
func WithCandleSubscription(subscriber core.CandleSubscriber) Option {
	return func(bot *Bot) {
		bot.candleSubscribers = append(bot.candleSubscribers, subscriber)
	}
}

// WithOrderSubscription subscribes a consumer to the order feed.
func WithOrderSubscription(subscriber core.OrderSubscriber) Option {
	return func(bot *Bot) {
		bot.orderSubscribers = append(bot.orderSubscribers, subscriber)
	}
}

// WithOrderControllerOptions forwards options to the order controller,
// eg. order.WithPositionSize.
func WithOrderControllerOptions(options ...order.ControllerOption) Option {
	return func(bot *Bot) {
		bot.controllerOptions = append(bot.controllerOptions, options...)
	}
}

// NewBot assembles a bot from an exchange and a strategy.
func NewBot(ctx context.Context, settings *core.Settings, exch core.Exchange,
	strat strategy.Strategy, options ...Option) (*Bot, error) {

	bot := &Bot{
		settings:    settings,
		exchange:    exch,
		strategy:    strat,
		orderFeed:   order.NewOrderFeed(),
		candleQueue: core.NewPriorityQueue(nil),
		registry:    strategy.NewRegistry(),
	}

	if err := validatePairs(settings.Pairs); err != nil {
		return nil, err
	}

	for _, option := range options {
		option(bot)
	}

	if bot.log == nil {
		log, err := zerolog.NewZerolog("info", "2006-01-02 15:04:05", true, false)
		if err != nil {
			return nil, err
		}
		bot.log = zerolog.NewAdapter(log.Logger)
	}

	if bot.storage == nil {
		var err error
		bot.storage, err = storage.FromFile(defaultDatabase)
		if err != nil {
			return nil, err
		}
	}

	bot.dataFeed = exchange.NewDataFeed(exch, bot.log)
	bot.orderController = order.NewController(ctx, exch, bot.storage, bot.log,
		bot.orderFeed, bot.controllerOptions...)

	if settings.Telegram.Enabled {
		telegram, err := notification.NewTelegram(bot.orderController, settings, bot.log)
		if err != nil {
			return nil, err
		}
		bot.telegram = telegram
		bot.notifier = telegram
	}

	if bot.notifier != nil {
		bot.orderController.SetNotifier(bot.notifier)
		bot.SubscribeOrder(bot.notifier)
	}
	bot.SubscribeOrder(bot.orderSubscribers...)

	return bot, nil
}

func validatePairs(pairs []string) error {
	for _, pair := range pairs {
		asset, quote := exchange.SplitAssetQuote(pair)
		if asset == "" || quote == "" {
			return fmt.Errorf("invalid pair: %s", pair)
		}
	}
	return nil
}

// SubscribeCandle attaches subscribers to every configured pair.
func (n *Bot) SubscribeCandle(subscriptions ...core.CandleSubscriber) {
	for _, pair := range n.settings.Pairs {
		for _, subscription := range subscriptions {
			n.dataFeed.Subscribe(pair, n.strategy.Timeframe(), subscription.OnCandle, false)
		}
	}
}

// SubscribeOrder attaches subscribers to the order feed of every
// configured pair.
func (n *Bot) SubscribeOrder(subscriptions ...core.OrderSubscriber) {
	for _, pair := range n.settings.Pairs {
		for _, subscription := range subscriptions {
			n.orderFeed.Subscribe(pair, subscription.OnOrder, false)
		}
	}
}

// Controller returns the order controller.
func (n *Bot) Controller() *order.Controller {
	return n.orderController
}

// Registry returns the strategy registry.
func (n *Bot) Registry() *strategy.Registry {
	return n.registry
}

// SaveReturns writes per-pair trade returns as CSV into outputDir.
func (n *Bot) SaveReturns(outputDir string) error {
	for _, summary := range n.orderController.Results {
		outputFile := fmt.Sprintf("%s/%s.csv", outputDir, summary.Pair)
		if err := summary.SaveReturns(outputFile); err != nil {
			return err
		}
	}
	return nil
}

// Summary prints per-pair trade statistics, the distribution of returns
// and bootstrapped confidence intervals to stdout.
func (n *Bot) Summary() {
	var (
		total  float64
		wins   int
		loses  int
		volume float64
		sqn    float64
	)

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Pair", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr Fact.", "SQN", "Profit", "Volume"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	avgPayoff := 0.0
	avgProfitFactor := 0.0
	returns := make([]float64, 0)

	for _, summary := range n.orderController.Results {
		trades := len(summary.Win()) + len(summary.Lose())
		if trades == 0 {
			continue
		}
		avgPayoff += summary.Payoff() * float64(trades)
		avgProfitFactor += summary.ProfitFactor() * float64(trades)
		table.Append([]string{
			summary.Pair,
			strconv.Itoa(trades),
			strconv.Itoa(len(summary.Win())),
			strconv.Itoa(len(summary.Lose())),
			fmt.Sprintf("%.1f %%", float64(len(summary.Win()))/float64(trades)*100),
			fmt.Sprintf("%.3f", summary.Payoff()),
			fmt.Sprintf("%.3f", summary.ProfitFactor()),
			fmt.Sprintf("%.1f", summary.SQN()),
			fmt.Sprintf("%.2f", summary.Profit()),
			fmt.Sprintf("%.2f", summary.Volume),
		})
		total += summary.Profit()
		sqn += summary.SQN()
		wins += len(summary.Win())
		loses += len(summary.Lose())
		volume += summary.Volume

		returns = append(returns, summary.WinPercent()...)
		returns = append(returns, summary.LosePercent()...)
	}

	if wins+loses == 0 {
		fmt.Println("no closed trades")
		return
	}

	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(wins + loses),
		strconv.Itoa(wins),
		strconv.Itoa(loses),
		fmt.Sprintf("%.1f %%", float64(wins)/float64(wins+loses)*100),
		fmt.Sprintf("%.3f", avgPayoff/float64(wins+loses)),
		fmt.Sprintf("%.3f", avgProfitFactor/float64(wins+loses)),
		fmt.Sprintf("%.1f", sqn/float64(len(n.orderController.Results))),
		fmt.Sprintf("%.2f", total),
		fmt.Sprintf("%.2f", volume),
	})
	table.Render()

	fmt.Println(buffer.String())
	fmt.Println("------ RETURN -------")
	returnsPercent := make([]float64, len(returns))
	for i, p := range returns {
		returnsPercent[i] = p * 100
	}
	hist := histogram.Hist(15, returnsPercent)
	histogram.Fprint(os.Stdout, hist, histogram.Linear(10))
	fmt.Println()

	fmt.Println("------ CONFIDENCE INTERVAL (95%) -------")
	for pair, summary := range n.orderController.Results {
		pairReturns := append(summary.WinPercent(), summary.LosePercent()...)
		if len(pairReturns) == 0 {
			continue
		}
		fmt.Printf("| %s |\n", pair)
		returnsInterval := metric.Bootstrap(pairReturns, metric.Mean, 10000, 0.95)
		payoffInterval := metric.Bootstrap(pairReturns, metric.Payoff, 10000, 0.95)
		profitFactorInterval := metric.Bootstrap(pairReturns, metric.ProfitFactor, 10000, 0.95)

		fmt.Printf("RETURN:      %.2f%% (%.2f%% ~ %.2f%%)\n",
			returnsInterval.Mean*100, returnsInterval.Lower*100, returnsInterval.Upper*100)
		fmt.Printf("PAYOFF:      %.2f (%.2f ~ %.2f)\n",
			payoffInterval.Mean, payoffInterval.Lower, payoffInterval.Upper)
		fmt.Printf("PROF.FACTOR: %.2f (%.2f ~ %.2f)\n",
			profitFactorInterval.Mean, profitFactorInterval.Lower, profitFactorInterval.Upper)
	}
	fmt.Println()

	if n.paperWallet != nil {
		n.paperWallet.Summary()
	}
}

// Run starts one strategy controller per pair and processes candles
// until the data feed ends or the context is cancelled.
func (n *Bot) Run(ctx context.Context) error {
	mode := strategy.ModeLive
	if n.backtest {
		mode = strategy.ModeBacktest
	}

	onSignal := func(signal core.Signal) {
		n.orderController.OnSignal(ctx, signal)
	}

	for _, pair := range n.settings.Pairs {
		controller, err := strategy.NewController(pair, n.strategy, n.params, onSignal, n.log)
		if err != nil {
			return err
		}

		if err := n.preload(ctx, pair, controller); err != nil {
			return err
		}

		n.dataFeed.Subscribe(pair, n.strategy.Timeframe(), n.onCandle, false)

		if err := n.registry.Start(mode, controller); err != nil {
			return err
		}
	}

	n.SubscribeCandle(n.candleSubscribers...)

	n.orderFeed.Start()
	n.orderController.Start(ctx)
	defer n.orderController.Stop(ctx)
	if n.telegram != nil {
		n.telegram.Start()
	}

	if err := n.dataFeed.Start(ctx, n.backtest); err != nil {
		return err
	}

	if n.backtest {
		n.backtestCandles(mode)
	} else {
		n.processCandles(mode)
	}

	return nil
}

// preload replays warmup history through the strategy controller so its
// indicators are primed before the first live candle.
func (n *Bot) preload(ctx context.Context, pair string, controller *strategy.Controller) error {
	if n.backtest {
		return nil
	}

	candles, err := n.exchange.CandlesByLimit(ctx, pair, n.strategy.Timeframe(), n.strategy.WarmupPeriod())
	if err != nil {
		return err
	}

	for _, candle := range candles {
		controller.OnCandle(candle)
	}

	n.dataFeed.Preload(pair, n.strategy.Timeframe(), candles)

	return nil
}
