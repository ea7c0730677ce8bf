package core

import "errors"

// Error taxonomy of the engine. Recoverable errors (stale data, rejected
// signals) are absorbed and logged by the stage that sees them; the rest
// terminate only the strategy instance or backtest session affected.
var (
	// ErrStaleObservation marks a tick older than the open aggregation
	// window. The observation is dropped; sealed history never changes.
	ErrStaleObservation = errors.New("stale observation")

	// ErrInvalidParameters refuses a strategy start whose parameters do
	// not satisfy the strategy's declared option set.
	ErrInvalidParameters = errors.New("invalid strategy parameters")

	// ErrStrategyFault discards a strategy instance after an
	// unrecoverable failure inside a callback. Restart is always fresh.
	ErrStrategyFault = errors.New("strategy fault")

	// ErrInsufficientBalance rejects a simulated signal that would drive
	// the wallet balance below zero. The strategy keeps running.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStrategyRunning refuses a second running instance for the same
	// account mode and pair.
	ErrStrategyRunning = errors.New("strategy already running for pair")

	// ErrOrderSink marks a failed or timed-out live order call. The
	// ledger is not updated until the status is reconciled.
	ErrOrderSink = errors.New("order sink request failed")

	// ErrHistoryFetch aborts a backtest whose candle range could not be
	// loaded.
	ErrHistoryFetch = errors.New("history fetch failed")

	ErrInvalidQuantity = errors.New("invalid quantity")
)
