package strategy

import "github.com/stratrun/stratrun/core"

// DataframeManager maintains the rolling candle history a strategy
// evaluates against.
type DataframeManager struct {
	dataframe *core.Dataframe
}

// NewDataframeManager creates a dataframe manager for a trading pair.
func NewDataframeManager(pair string) *DataframeManager {
	return &DataframeManager{
		dataframe: &core.Dataframe{
			Pair:     pair,
			Metadata: make(map[string]core.Series[float64]),
		},
	}
}

// Dataframe returns the full candle history.
func (dm *DataframeManager) Dataframe() *core.Dataframe {
	return dm.dataframe
}

// Sample returns the trailing warmupPeriod candles.
func (dm *DataframeManager) Sample(warmupPeriod int) core.Dataframe {
	return dm.dataframe.Sample(warmupPeriod)
}

// Update appends a candle, or rewrites the last row when the timestamp
// matches an in-progress bar that was already recorded.
func (dm *DataframeManager) Update(candle core.Candle) {
	n := len(dm.dataframe.Time)
	if n > 0 && candle.Time.Equal(dm.dataframe.Time[n-1]) {
		last := n - 1
		dm.dataframe.Open[last] = candle.Open
		dm.dataframe.Close[last] = candle.Close
		dm.dataframe.High[last] = candle.High
		dm.dataframe.Low[last] = candle.Low
		dm.dataframe.Volume[last] = candle.Volume
		dm.dataframe.LastUpdate = candle.UpdatedAt
		for k, v := range candle.Metadata {
			if len(dm.dataframe.Metadata[k]) == n {
				dm.dataframe.Metadata[k][last] = v
			} else {
				dm.dataframe.Metadata[k] = append(dm.dataframe.Metadata[k], v)
			}
		}
		return
	}

	dm.dataframe.Open = append(dm.dataframe.Open, candle.Open)
	dm.dataframe.Close = append(dm.dataframe.Close, candle.Close)
	dm.dataframe.High = append(dm.dataframe.High, candle.High)
	dm.dataframe.Low = append(dm.dataframe.Low, candle.Low)
	dm.dataframe.Volume = append(dm.dataframe.Volume, candle.Volume)
	dm.dataframe.Time = append(dm.dataframe.Time, candle.Time)
	dm.dataframe.LastUpdate = candle.UpdatedAt
	for k, v := range candle.Metadata {
		dm.dataframe.Metadata[k] = append(dm.dataframe.Metadata[k], v)
	}
}

// HasSufficientData reports whether the warmup period is satisfied.
func (dm *DataframeManager) HasSufficientData(warmupPeriod int) bool {
	return len(dm.dataframe.Close) >= warmupPeriod
}

// IsLateCandle reports whether a candle is older than the newest one
// already recorded.
func (dm *DataframeManager) IsLateCandle(candle core.Candle) bool {
	n := len(dm.dataframe.Time)
	return n > 0 && candle.Time.Before(dm.dataframe.Time[n-1])
}
