package strategy

import (
	"fmt"
	"sync"

	"github.com/stratrun/stratrun/core"
)

// Mode separates simulated and live account scopes in the registry.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)

// Registry tracks running strategy controllers and enforces that at
// most one strategy runs per pair within an account mode. The same pair
// may run in backtest and live mode at the same time, since the two
// never share a ledger.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		controllers: make(map[string]*Controller),
	}
}

func registryKey(mode Mode, pair string) string {
	return fmt.Sprintf("%s:%s", mode, pair)
}

// Start registers a controller under a mode and pair and starts it. A
// pair that already has a running controller in the same mode is
// rejected before any strategy state changes.
func (r *Registry) Start(mode Mode, controller *Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(mode, controller.Pair())
	if existing, ok := r.controllers[key]; ok && existing.Status() == StatusRunning {
		return fmt.Errorf("%w: %s (%s)", core.ErrStrategyRunning, controller.Pair(), mode)
	}

	if err := controller.Start(); err != nil {
		return err
	}

	r.controllers[key] = controller
	return nil
}

// Stop stops the controller registered for a mode and pair.
func (r *Registry) Stop(mode Mode, pair string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if controller, ok := r.controllers[registryKey(mode, pair)]; ok {
		controller.Stop()
	}
}

// Controller returns the controller registered for a mode and pair.
func (r *Registry) Controller(mode Mode, pair string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	controller, ok := r.controllers[registryKey(mode, pair)]
	return controller, ok
}
