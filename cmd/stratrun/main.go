package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratrun/stratrun"
	"github.com/stratrun/stratrun/backtest"
	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/exchange"
	"github.com/stratrun/stratrun/exchange/binance"
	"github.com/stratrun/stratrun/logger"
	"github.com/stratrun/stratrun/logger/logrus"
	"github.com/stratrun/stratrun/storage"
	"github.com/stratrun/stratrun/strategies"
	"github.com/stratrun/stratrun/strategy"
)

const dateLayout = "2006-01-02"

var (
	pair       string
	days       int
	startDate  string
	endDate    string
	timeframe  string
	outputFile string

	dataFile     string
	strategyName string
	initialQuote float64
)

var log logger.Logger = logrus.New(logger.InfoLevel)

func main() {
	rootCmd := &cobra.Command{
		Use:     "stratrun",
		Short:   "Strategy execution and backtesting utilities",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildDownloadCmd())
	rootCmd.AddCommand(buildBacktestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical candles to CSV",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair (e.g. BTCUSDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2021-12-31)")
	downloadCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Timeframe (e.g. 1h)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./btc.csv)")

	downloadCmd.MarkFlagRequired("pair")
	downloadCmd.MarkFlagRequired("timeframe")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	exch, err := binance.NewExchange(cmd.Context(), log)
	if err != nil {
		return err
	}

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	return backtest.NewDownloader(exch, log).Download(
		cmd.Context(),
		pair,
		timeframe,
		outputFile,
		options...,
	)
}

func buildDownloadOptions() ([]backtest.Option, error) {
	var options []backtest.Option

	if days > 0 {
		options = append(options, backtest.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("start and end dates must be provided together")
		}

		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date: %w", err)
		}
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}

		options = append(options, backtest.WithInterval(start, end))
	}

	return options, nil
}

func buildBacktestCmd() *cobra.Command {
	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a strategy over a CSV candle file",
		RunE:  runBacktest,
	}

	backtestCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair (e.g. BTCUSDT)")
	backtestCmd.Flags().StringVarP(&dataFile, "data", "i", "", "CSV candle file")
	backtestCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1h", "Timeframe (e.g. 1h)")
	backtestCmd.Flags().StringVarP(&strategyName, "strategy", "y", "ma_crossover", "Strategy name")
	backtestCmd.Flags().Float64VarP(&initialQuote, "balance", "b", 10000, "Initial quote balance")

	backtestCmd.MarkFlagRequired("pair")
	backtestCmd.MarkFlagRequired("data")

	return backtestCmd
}

func buildStrategy(name, timeframe string) (strategy.Strategy, error) {
	switch name {
	case "ma_crossover":
		return strategies.NewMACrossover(timeframe), nil
	case "rsi_reversal":
		return strategies.NewRSIReversal(timeframe), nil
	case "macd_cross":
		return strategies.NewMACDCross(timeframe), nil
	case "bollinger_bounce":
		return strategies.NewBollingerBounce(timeframe), nil
	}
	return nil, fmt.Errorf("unknown strategy: %s", name)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	strat, err := buildStrategy(strategyName, timeframe)
	if err != nil {
		return err
	}

	csvFeed, err := exchange.NewCSVFeed(timeframe, exchange.PairFeed{
		Pair:      pair,
		File:      dataFile,
		Timeframe: timeframe,
	})
	if err != nil {
		return err
	}

	memory, err := storage.FromMemory()
	if err != nil {
		return err
	}

	_, quote := exchange.SplitAssetQuote(pair)
	wallet := exchange.NewPaperWallet(
		ctx,
		quote,
		log,
		exchange.WithPaperAsset(quote, initialQuote),
		exchange.WithDataFeed(csvFeed),
	)

	bot, err := stratrun.NewBot(
		ctx,
		&core.Settings{Pairs: []string{pair}},
		wallet,
		strat,
		stratrun.WithBacktest(wallet),
		stratrun.WithStorage(memory),
	)
	if err != nil {
		return err
	}

	if err := bot.Run(ctx); err != nil {
		return err
	}

	bot.Summary()
	return nil
}
