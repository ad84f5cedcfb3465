package bot

import (
	"errors"
	"fmt"
)

// Lifecycle misuse; surfaced to the caller as a 400, no state is mutated.
var (
	ErrAlreadyRunning = errors.New("a trading bot is already running, stop it first")
	ErrNotRunning     = errors.New("no trading bot is running")
)

// ValidationError reports missing or invalid start parameters
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// InvalidSymbolError reports a symbol the brokerage will not trade. Start is
// rejected before anything is persisted.
type InvalidSymbolError struct {
	Symbol string
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("symbol %s is not tradable", e.Symbol)
}
