package order

import (
	"math"
	"time"

	"github.com/stratrun/stratrun/core"
)

// TradeResult is the outcome of a closed (or partially closed) trade,
// net of the commission paid on both legs.
type TradeResult struct {
	Pair          string
	ProfitPercent float64
	ProfitValue   float64
	Side          core.SideType
	Duration      time.Duration
	CreatedAt     time.Time
}

// Position tracks one open position for a pair: its side, quantity,
// average entry price and the commission accumulated entering it.
type Position struct {
	Side      core.SideType
	CreatedAt time.Time
	AvgPrice  float64
	Quantity  float64
	Fees      float64
}

// NewPosition opens a position from a filled order.
func NewPosition(order *core.Order) *Position {
	return &Position{
		Side:      order.Side,
		CreatedAt: order.CreatedAt,
		AvgPrice:  order.Price,
		Quantity:  order.Quantity,
		Fees:      order.Fee,
	}
}

// Update applies a filled order to the position. A same-side order
// grows the position and recomputes the average entry price; an
// opposing order realizes profit on the closed quantity. The returned
// result is nil when nothing was closed; finished reports whether the
// position is now fully closed.
func (p *Position) Update(order *core.Order) (result *TradeResult, finished bool) {
	price := order.Price

	if p.Side == order.Side {
		p.AvgPrice = (p.AvgPrice*p.Quantity + price*order.Quantity) / (p.Quantity + order.Quantity)
		p.Quantity += order.Quantity
		p.Fees += order.Fee
		return nil, false
	}

	closedQuantity := math.Min(p.Quantity, order.Quantity)

	direction := 1.0
	if p.Side == core.SideTypeSell {
		direction = -1.0
	}

	// Entry commission is charged proportionally to the closed share;
	// the exit commission belongs entirely to this fill.
	entryFee := p.Fees * closedQuantity / p.Quantity
	gross := direction * (price - p.AvgPrice) * closedQuantity
	profitValue := gross - entryFee - order.Fee
	profitPercent := profitValue / (p.AvgPrice * closedQuantity)

	order.Profit = profitPercent
	order.ProfitValue = profitValue

	result = &TradeResult{
		CreatedAt:     order.CreatedAt,
		Pair:          order.Pair,
		Duration:      order.CreatedAt.Sub(p.CreatedAt),
		ProfitPercent: profitPercent,
		ProfitValue:   profitValue,
		Side:          p.Side,
	}

	switch {
	case p.Quantity == order.Quantity:
		return result, true

	case p.Quantity > order.Quantity:
		p.Quantity -= order.Quantity
		p.Fees -= entryFee
		return result, false

	default:
		// Reversal: the remainder opens a position on the other side.
		p.Quantity = order.Quantity - p.Quantity
		p.Side = order.Side
		p.CreatedAt = order.CreatedAt
		p.AvgPrice = price
		p.Fees = 0
		return result, false
	}
}
