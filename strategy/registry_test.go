package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/core"
	"github.com/stratrun/stratrun/logger"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	controller, err := NewController("BTCUSDT", &fakeStrategy{warmup: 1, action: core.SignalHold},
		nil, func(core.Signal) {}, logger.Noop())
	require.NoError(t, err)
	return controller
}

func TestRegistry_RejectsSecondRunningInstance(t *testing.T) {
	registry := NewRegistry()

	first := newTestController(t)
	require.NoError(t, registry.Start(ModeBacktest, first))

	second := newTestController(t)
	err := registry.Start(ModeBacktest, second)
	require.ErrorIs(t, err, core.ErrStrategyRunning)

	// rejected before any state change
	require.Equal(t, StatusIdle, second.Status())
	require.Equal(t, StatusRunning, first.Status())
}

func TestRegistry_ModesAreIndependent(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Start(ModeBacktest, newTestController(t)))
	require.NoError(t, registry.Start(ModeLive, newTestController(t)))
}

func TestRegistry_RestartAfterStop(t *testing.T) {
	registry := NewRegistry()

	first := newTestController(t)
	require.NoError(t, registry.Start(ModeBacktest, first))

	registry.Stop(ModeBacktest, "BTCUSDT")
	require.Equal(t, StatusStopped, first.Status())

	second := newTestController(t)
	require.NoError(t, registry.Start(ModeBacktest, second))

	controller, ok := registry.Controller(ModeBacktest, "BTCUSDT")
	require.True(t, ok)
	require.Same(t, second, controller)
}
