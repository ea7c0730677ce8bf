package core

import "time"

// Observation is a single normalized trade tick: one price at one instant.
// Observations are immutable and consumed exactly once by the aggregation
// pipeline of their pair.
type Observation struct {
	Pair     string
	Price    float64
	Quantity float64
	Time     time.Time
}

// Equal reports whether two observations carry the same payload. The
// normalizer uses it to drop consecutive duplicates delivered by
// at-least-once feeds.
func (o Observation) Equal(other Observation) bool {
	return o.Pair == other.Pair &&
		o.Price == other.Price &&
		o.Quantity == other.Quantity &&
		o.Time.Equal(other.Time)
}
