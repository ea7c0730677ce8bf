// Package notification delivers trading events to external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/logger"
	"github.com/stratrun/stratrun/order"
)

const pollingTimeout = 10 * time.Second

var (
	buyRegexp  = regexp.MustCompile(`/buy\s+(?P<pair>\w+)\s+(?P<amount>\d+(?:\.\d+)?)(?P<percent>%)?`)
	sellRegexp = regexp.MustCompile(`/sell\s+(?P<pair>\w+)\s+(?P<amount>\d+(?:\.\d+)?)(?P<percent>%)?`)
)

// Telegram sends trading notifications to authorized users and accepts
// manual order commands from them.
type Telegram struct {
	settings        *core.Settings
	orderController *order.Controller
	defaultMenu     *tb.ReplyMarkup
	client          *tb.Bot
	log             logger.Logger
}

// NewTelegram creates a telegram notifier bound to the order
// controller.
func NewTelegram(controller *order.Controller, settings *core.Settings,
	log logger.Logger) (core.NotifierWithStart, error) {

	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: pollingTimeout}

	userMiddleware := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(settings.Telegram.Users, int(u.Message.Sender.ID)) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Telegram.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	var (
		statusBtn  = menu.Text("/status")
		profitBtn  = menu.Text("/profit")
		balanceBtn = menu.Text("/balance")
		startBtn   = menu.Text("/start")
		stopBtn    = menu.Text("/stop")
		buyBtn     = menu.Text("/buy")
		sellBtn    = menu.Text("/sell")
	)
	menu.Reply(
		menu.Row(statusBtn, balanceBtn, profitBtn),
		menu.Row(startBtn, stopBtn, buyBtn, sellBtn),
	)

	err = client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/stop", Description: "Stop order monitoring"},
		{Text: "/start", Description: "Start order monitoring"},
		{Text: "/status", Description: "Check bot status"},
		{Text: "/balance", Description: "Wallet balance"},
		{Text: "/profit", Description: "Summary of last trade results"},
		{Text: "/buy", Description: "Open a buy order"},
		{Text: "/sell", Description: "Open a sell order"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		orderController: controller,
		client:          client,
		settings:        settings,
		defaultMenu:     menu,
		log:             log,
	}

	client.Handle("/help", bot.HelpHandle)
	client.Handle("/start", bot.StartHandle)
	client.Handle("/stop", bot.StopHandle)
	client.Handle("/status", bot.StatusHandle)
	client.Handle("/balance", bot.BalanceHandle)
	client.Handle("/profit", bot.ProfitHandle)
	client.Handle("/buy", bot.BuyHandle)
	client.Handle("/sell", bot.SellHandle)

	return bot, nil
}

// Start launches the telegram polling loop and greets the users.
func (t *Telegram) Start() {
	go t.client.Start()
	for _, user := range t.settings.Telegram.Users {
		_, err := t.client.Send(&tb.User{ID: int64(user)}, "Bot initialized.", t.defaultMenu)
		if err != nil {
			t.log.WithError(err).Error("failed to send message")
		}
	}
}

// Notify sends a message to all authorized users.
func (t *Telegram) Notify(text string) {
	for _, user := range t.settings.Telegram.Users {
		_, err := t.client.Send(&tb.User{ID: int64(user)}, text)
		if err != nil {
			t.log.WithError(err).Error("failed to send notification")
		}
	}
}

func (t *Telegram) sendMessage(to *tb.User, text string, options ...any) {
	_, err := t.client.Send(to, text, options...)
	if err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// BalanceHandle replies with the wallet balance across configured
// pairs.
func (t *Telegram) BalanceHandle(m *tb.Message) {
	account, err := t.orderController.Account(context.Background())
	if err != nil {
		t.log.WithError(err).Error("failed to get account")
		t.OnError(err)
		return
	}

	message := "*BALANCE*\n"
	quotes := make(map[string]float64)

	for _, pair := range t.settings.Pairs {
		assetPair, quotePair := exchange.SplitAssetQuote(pair)
		assetBalance, quoteBalance := account.GetBalance(assetPair, quotePair)

		quote, err := t.orderController.LastQuote(pair)
		if err != nil {
			t.OnError(fmt.Errorf("failed to get last quote for %s: %w", pair, err))
			return
		}

		quotes[assetPair] = quote
		message += fmt.Sprintf("%s: `%.4f` ≅ `%.2f` %s \n", assetPair, assetBalance.Total(), assetBalance.Total()*quote, quotePair)
		message += fmt.Sprintf("%s: `%.4f`\n", quotePair, quoteBalance.Total())
	}

	total := account.Equity(func(asset string) (float64, bool) {
		price, ok := quotes[asset]
		return price, ok
	})

	message += fmt.Sprintf("-----\nTotal: `%.4f`\n", total)
	t.sendMessage(m.Sender, message)
}

// HelpHandle lists the available commands.
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// ProfitHandle replies with the per-pair trade summaries.
func (t *Telegram) ProfitHandle(m *tb.Message) {
	if len(t.orderController.Results) == 0 {
		t.sendMessage(m.Sender, "No trades registered.")
		return
	}

	for pair, summary := range t.orderController.Results {
		t.sendMessage(m.Sender, fmt.Sprintf("*PAIR*: `%s`\n`%s`", pair, summary.String()))
	}
}

// BuyHandle opens a manual buy order: `/buy BTCUSDT 0.1` buys an asset
// quantity, `/buy BTCUSDT 50%` spends a share of the quote balance.
func (t *Telegram) BuyHandle(m *tb.Message) {
	match := buyRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExamples of usage:\n`/buy BTCUSDT 0.1`\n\n`/buy BTCUSDT 50%`")
		return
	}

	if err := t.processOrder(m.Sender, buyRegexp, match, core.SideTypeBuy); err != nil {
		t.OnError(err)
	}
}

// SellHandle opens a manual sell order, mirroring BuyHandle.
func (t *Telegram) SellHandle(m *tb.Message) {
	match := sellRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExamples of usage:\n`/sell BTCUSDT 0.1`\n\n`/sell BTCUSDT 50%`")
		return
	}

	if err := t.processOrder(m.Sender, sellRegexp, match, core.SideTypeSell); err != nil {
		t.OnError(err)
	}
}

// StatusHandle replies with the order controller state and the orders
// still resting on the exchange.
func (t *Telegram) StatusHandle(m *tb.Message) {
	message := fmt.Sprintf("Status: `%s`\n", t.orderController.Status())

	for _, pair := range t.settings.Pairs {
		pending, err := t.orderController.PendingOrders(context.Background(), pair)
		if err != nil {
			t.OnError(err)
			return
		}
		if len(pending) == 0 {
			continue
		}

		message += fmt.Sprintf("\n%s open orders:\n", pair)
		for _, order := range pending {
			message += fmt.Sprintf("`%s`\n", order)
		}
	}

	t.sendMessage(m.Sender, message)
}

// StartHandle starts order monitoring.
func (t *Telegram) StartHandle(m *tb.Message) {
	if t.orderController.Status() == order.StatusRunning {
		t.sendMessage(m.Sender, "Bot is already running.", t.defaultMenu)
		return
	}

	t.orderController.Start(context.Background())
	t.sendMessage(m.Sender, "Bot started.", t.defaultMenu)
}

// StopHandle stops order monitoring.
func (t *Telegram) StopHandle(m *tb.Message) {
	if t.orderController.Status() == order.StatusStopped {
		t.sendMessage(m.Sender, "Bot is already stopped.", t.defaultMenu)
		return
	}

	t.orderController.Stop(context.Background())
	t.sendMessage(m.Sender, "Bot stopped.", t.defaultMenu)
}

// OnOrder notifies users about order status changes.
func (t *Telegram) OnOrder(order core.Order) {
	var title string
	switch order.Status {
	case core.OrderStatusTypeFilled:
		title = fmt.Sprintf("✅ ORDER FILLED - %s", order.Pair)
	case core.OrderStatusTypeNew:
		title = fmt.Sprintf("🆕 NEW ORDER - %s", order.Pair)
	case core.OrderStatusTypeCanceled, core.OrderStatusTypeRejected:
		title = fmt.Sprintf("❌ ORDER CANCELED / REJECTED - %s", order.Pair)
	default:
		title = fmt.Sprintf("ORDER UPDATE - %s", order.Pair)
	}

	t.Notify(fmt.Sprintf("%s\n-----\n%s", title, order))
}

// OnError notifies users about errors.
func (t *Telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n")

	var orderError *exchange.OrderError
	if errors.As(err, &orderError) {
		sb.WriteString("-----\n")
		fmt.Fprintf(&sb, "Pair: %s\n", orderError.Pair)
		fmt.Fprintf(&sb, "Quantity: %.4f\n", orderError.Quantity)
		sb.WriteString("-----\n")
		sb.WriteString(orderError.Err.Error())
		t.Notify(sb.String())
		return
	}

	sb.WriteString("-----\n")
	sb.WriteString(err.Error())
	t.Notify(sb.String())
}

// processOrder parses a manual order command and places a market
// order.
func (t *Telegram) processOrder(sender *tb.User, regex *regexp.Regexp, match []string, side core.SideType) error {
	command := make(map[string]string)
	for i, name := range regex.SubexpNames() {
		if i != 0 && name != "" {
			command[name] = match[i]
		}
	}

	pair := strings.ToUpper(command["pair"])
	amount, err := strconv.ParseFloat(command["amount"], 64)
	if err != nil {
		return fmt.Errorf("failed to parse amount: %w", err)
	}

	if amount <= 0 {
		t.sendMessage(sender, "Invalid amount")
		return nil
	}

	if command["percent"] != "" {
		amount, err = t.percentageQuantity(pair, side, amount)
		if err != nil {
			return err
		}
	}

	createdOrder, err := t.orderController.CreateOrderMarket(context.Background(), side, pair, amount)
	if err != nil {
		return fmt.Errorf("failed to create %s order for %s: %w", side, pair, err)
	}

	t.log.Infof("[TELEGRAM]: %s ORDER CREATED: %s", side, createdOrder)
	return nil
}

// percentageQuantity converts a percent amount to an asset quantity:
// buys use the quote balance at the last price, sells the held asset.
func (t *Telegram) percentageQuantity(pair string, side core.SideType, percentage float64) (float64, error) {
	asset, quote, err := t.orderController.Position(context.Background(), pair)
	if err != nil {
		return 0, fmt.Errorf("failed to get position for %s: %w", pair, err)
	}

	if side == core.SideTypeSell {
		return percentage * asset / 100.0, nil
	}

	price, err := t.orderController.LastQuote(pair)
	if err != nil {
		return 0, fmt.Errorf("failed to get last quote for %s: %w", pair, err)
	}

	return percentage * quote / 100.0 / price, nil
}
