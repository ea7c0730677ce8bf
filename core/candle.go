package core

import (
	"fmt"
	"strconv"
	"time"
)

// Candle is an OHLCV bar for a fixed window. While the window is open the
// candle mutates (high=max, low=min, close=last, volume accumulates);
// once Complete is set the candle is sealed and never changes again.
type Candle struct {
	Pair      string
	Time      time.Time
	UpdatedAt time.Time
	Open      float64
	Close     float64
	Low       float64
	High      float64
	Volume    float64
	Complete  bool

	// Additional columns carried from CSV inputs or metadata fetchers.
	Metadata map[string]float64
}

// IsEmpty reports whether the candle holds no price data.
func (c Candle) IsEmpty() bool {
	return c.Pair == "" && c.Open == 0 && c.Close == 0 && c.Volume == 0
}

// ToSlice converts the candle to a string slice for CSV serialization.
func (c Candle) ToSlice(precision int) []string {
	return []string{
		fmt.Sprintf("%d", c.Time.Unix()),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}

// Less implements the priority queue Item interface. Candles are ordered
// by open time, then update time, then pair, so replay over a heap of
// mixed-pair candles is deterministic.
func (c Candle) Less(j Item) bool {
	other := j.(Candle)

	diff := other.Time.Sub(c.Time)
	if diff != 0 {
		return diff > 0
	}

	diff = other.UpdatedAt.Sub(c.UpdatedAt)
	if diff != 0 {
		return diff > 0
	}

	return c.Pair < other.Pair
}
