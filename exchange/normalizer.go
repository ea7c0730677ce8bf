package exchange

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stratrun/stratrun/core"
)

// RawTick is an unparsed trade event as delivered by an exchange feed.
// Prices and quantities arrive as strings, timestamps in milliseconds.
type RawTick struct {
	Symbol   string
	Price    string
	Quantity string
	TimeMs   int64
}

var (
	errMalformedTick = errors.New("malformed tick")
)

// Normalizer converts raw trade events into canonical observations. It
// uppercases the pair, parses the numeric fields and drops consecutive
// identical duplicates, which at-least-once feeds are allowed to emit.
type Normalizer struct {
	last core.Observation
	seen bool
}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses a raw tick. The second return value is false when the
// tick is a duplicate of the previous one and must be skipped.
func (n *Normalizer) Normalize(tick RawTick) (core.Observation, bool, error) {
	if tick.Symbol == "" || tick.TimeMs <= 0 {
		return core.Observation{}, false, errMalformedTick
	}

	price, err := strconv.ParseFloat(tick.Price, 64)
	if err != nil || price <= 0 {
		return core.Observation{}, false, errMalformedTick
	}

	quantity, err := strconv.ParseFloat(tick.Quantity, 64)
	if err != nil || quantity < 0 {
		return core.Observation{}, false, errMalformedTick
	}

	obs := core.Observation{
		Pair:     strings.ToUpper(tick.Symbol),
		Price:    price,
		Quantity: quantity,
		Time:     time.Unix(0, tick.TimeMs*int64(time.Millisecond)).UTC(),
	}

	if n.seen && obs.Equal(n.last) {
		return core.Observation{}, false, nil
	}

	n.last = obs
	n.seen = true
	return obs, true, nil
}
