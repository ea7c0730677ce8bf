package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
)

func filledOrder(side core.SideType, price, quantity, fee float64, at time.Time) *core.Order {
	return &core.Order{
		Pair:      "BTCUSDT",
		Side:      side,
		Status:    core.OrderStatusTypeFilled,
		Price:     price,
		Quantity:  quantity,
		Fee:       fee,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestPosition_SameSideGrowsAndAverages(t *testing.T) {
	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	position := NewPosition(filledOrder(core.SideTypeBuy, 100, 1, 0.1, base))

	result, finished := position.Update(filledOrder(core.SideTypeBuy, 200, 1, 0.2, base.Add(time.Hour)))
	require.Nil(t, result)
	require.False(t, finished)

	require.Equal(t, 150.0, position.AvgPrice)
	require.Equal(t, 2.0, position.Quantity)
	require.InDelta(t, 0.3, position.Fees, 1e-9)
}

func TestPosition_FullCloseNetOfFees(t *testing.T) {
	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	position := NewPosition(filledOrder(core.SideTypeBuy, 100, 2, 0.2, base))

	exit := filledOrder(core.SideTypeSell, 110, 2, 0.22, base.Add(time.Hour))
	result, finished := position.Update(exit)
	require.NotNil(t, result)
	require.True(t, finished)

	// gross 20, minus 0.2 entry fee and 0.22 exit fee
	require.InDelta(t, 19.58, result.ProfitValue, 1e-9)
	require.InDelta(t, 19.58/200.0, result.ProfitPercent, 1e-9)
	require.Equal(t, core.SideTypeBuy, result.Side)
	require.Equal(t, time.Hour, result.Duration)

	require.InDelta(t, result.ProfitValue, exit.ProfitValue, 1e-9)
}

func TestPosition_PartialCloseKeepsProportionalFees(t *testing.T) {
	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	position := NewPosition(filledOrder(core.SideTypeBuy, 100, 4, 0.4, base))

	result, finished := position.Update(filledOrder(core.SideTypeSell, 110, 1, 0.11, base.Add(time.Hour)))
	require.NotNil(t, result)
	require.False(t, finished)

	// entry fee charged on one quarter of the position
	require.InDelta(t, 10-0.1-0.11, result.ProfitValue, 1e-9)
	require.Equal(t, 3.0, position.Quantity)
	require.InDelta(t, 0.3, position.Fees, 1e-9)
	require.Equal(t, core.SideTypeBuy, position.Side)
}

func TestPosition_ShortProfitsOnDrop(t *testing.T) {
	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	position := NewPosition(filledOrder(core.SideTypeSell, 100, 1, 0, base))

	result, finished := position.Update(filledOrder(core.SideTypeBuy, 90, 1, 0, base.Add(time.Hour)))
	require.NotNil(t, result)
	require.True(t, finished)
	require.InDelta(t, 10.0, result.ProfitValue, 1e-9)
	require.Equal(t, core.SideTypeSell, result.Side)
}

func TestPosition_ReversalOpensOppositeSide(t *testing.T) {
	base := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	position := NewPosition(filledOrder(core.SideTypeBuy, 100, 1, 0, base))

	result, finished := position.Update(filledOrder(core.SideTypeSell, 120, 3, 0, base.Add(time.Hour)))
	require.NotNil(t, result)
	require.False(t, finished)

	// profit realized on the closed quantity only
	require.InDelta(t, 20.0, result.ProfitValue, 1e-9)

	require.Equal(t, core.SideTypeSell, position.Side)
	require.Equal(t, 2.0, position.Quantity)
	require.Equal(t, 120.0, position.AvgPrice)
}
