package backtest

import (
	"context"
	"encoding/csv"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/xhit/go-str2duration/v2"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/logger"
)

const batchSize = 500

var csvHeaders = []string{"time", "open", "close", "low", "high", "volume"}

// Downloader fetches historical candles from an exchange and writes
// them to CSV files the backtest can replay.
type Downloader struct {
	exchange core.Feeder
	log      logger.Logger
}

// NewDownloader creates a downloader over an exchange feed.
func NewDownloader(exchange core.Feeder, log logger.Logger) Downloader {
	return Downloader{exchange: exchange, log: log}
}

// Parameters is the time range to download.
type Parameters struct {
	Start time.Time
	End   time.Time
}

// Option configures download parameters.
type Option func(*Parameters)

// WithInterval sets an explicit start and end time.
func WithInterval(start, end time.Time) Option {
	return func(parameters *Parameters) {
		parameters.Start = start
		parameters.End = end
	}
}

// WithDays downloads the trailing number of days.
func WithDays(days int) Option {
	return func(parameters *Parameters) {
		parameters.Start = time.Now().AddDate(0, 0, -days)
		parameters.End = time.Now()
	}
}

// Download fetches candles in batches and writes them as CSV.
func (d Downloader) Download(ctx context.Context, pair, timeframe, outputPath string, options ...Option) error {
	recordFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer recordFile.Close()

	now := time.Now()
	parameters := &Parameters{
		Start: now.AddDate(0, -1, 0),
		End:   now,
	}
	for _, option := range options {
		option(parameters)
	}
	normalizeTimeParameters(parameters)

	interval, err := str2duration.ParseDuration(timeframe)
	if err != nil {
		return err
	}
	candleCount := int(parameters.End.Sub(parameters.Start)/interval) + 1

	d.log.Infof("Downloading %d candles of %s for %s", candleCount, timeframe, pair)

	writer := csv.NewWriter(recordFile)
	assetInfo := d.exchange.AssetsInfo(pair)
	progressBar := progressbar.Default(int64(candleCount))

	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	missingCandles := 0
	for batchStart := parameters.Start; batchStart.Before(parameters.End); batchStart = batchStart.Add(interval * batchSize) {
		batchEnd := batchStart.Add(interval*batchSize - time.Second)
		isLastBatch := false
		if !batchEnd.Before(parameters.End) {
			batchEnd = parameters.End
			isLastBatch = true
		}

		candles, err := d.exchange.CandlesByPeriod(ctx, pair, timeframe, batchStart, batchEnd)
		if err != nil {
			return err
		}

		for _, candle := range candles {
			if err := writer.Write(candle.ToSlice(assetInfo.QuotePrecision)); err != nil {
				return err
			}
		}

		if !isLastBatch && len(candles) < batchSize {
			missingCandles += batchSize - len(candles)
		}

		if err := progressBar.Add(len(candles)); err != nil {
			d.log.Warnf("failed to update progress bar: %s", err.Error())
		}
	}

	if err = progressBar.Close(); err != nil {
		d.log.Warnf("failed to close progress bar: %s", err.Error())
	}

	if missingCandles > 0 {
		d.log.Warnf("%d missing candles", missingCandles)
	}

	writer.Flush()
	d.log.Info("Done!")
	return writer.Error()
}

// normalizeTimeParameters snaps the range to day boundaries and keeps
// the end out of the future.
func normalizeTimeParameters(parameters *Parameters) {
	parameters.Start = time.Date(
		parameters.Start.Year(), parameters.Start.Month(), parameters.Start.Day(),
		0, 0, 0, 0, time.UTC,
	)

	now := time.Now()
	if now.After(parameters.End) {
		parameters.End = time.Date(
			parameters.End.Year(), parameters.End.Month(), parameters.End.Day(),
			0, 0, 0, 0, time.UTC,
		)
	} else {
		parameters.End = now
	}
}
