package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeries_Last(t *testing.T) {
	s := Series[float64]{1, 2, 3, 4}

	require.Equal(t, 4, s.Length())
	require.Equal(t, 4.0, s.Last(0))
	require.Equal(t, 3.0, s.Last(1))
	require.Equal(t, 1.0, s.Last(3))
}

func TestSeries_LastValues(t *testing.T) {
	s := Series[float64]{1, 2, 3, 4}

	require.Equal(t, Series[float64]{3, 4}, s.LastValues(2))
	require.Equal(t, s, s.LastValues(10))
}

func TestSeries_Crossover(t *testing.T) {
	fast := Series[float64]{1, 3}
	slow := Series[float64]{2, 2}

	require.True(t, fast.Crossover(slow))
	require.False(t, slow.Crossover(fast))
	require.True(t, slow.Crossunder(fast))
	require.True(t, fast.Cross(slow))

	// already above, no new cross
	fast = Series[float64]{3, 4}
	require.False(t, fast.Crossover(slow))
	require.False(t, fast.Cross(slow))
}

func TestDataframe_Sample(t *testing.T) {
	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	times := make([]time.Time, 5)
	for i := range times {
		times[i] = base.Add(time.Duration(i) * time.Minute)
	}

	df := Dataframe{
		Pair:   "BTCUSDT",
		Close:  Series[float64]{1, 2, 3, 4, 5},
		Open:   Series[float64]{1, 2, 3, 4, 5},
		High:   Series[float64]{1, 2, 3, 4, 5},
		Low:    Series[float64]{1, 2, 3, 4, 5},
		Volume: Series[float64]{1, 2, 3, 4, 5},
		Time:   times,
		Metadata: map[string]Series[float64]{
			"sma_2": {0, 1.5, 2.5, 3.5, 4.5},
		},
	}

	sample := df.Sample(2)
	require.Equal(t, Series[float64]{4, 5}, sample.Close)
	require.Equal(t, times[3:], sample.Time)
	require.Equal(t, Series[float64]{3.5, 4.5}, sample.Metadata["sma_2"])

	// asking for more than exists returns the whole frame
	whole := df.Sample(10)
	require.Equal(t, 5, whole.Close.Length())
}
