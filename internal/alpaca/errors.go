package alpaca

import "fmt"

// MarketDataError indicates the historical bars request failed. A tick that
// hits this logs it and ends early; it never stops the scheduler.
type MarketDataError struct {
	Symbol string
	Err    error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data for %s: %v", e.Symbol, e.Err)
}

func (e *MarketDataError) Unwrap() error { return e.Err }

// PositionError indicates a position lookup failed for a reason other than
// the position not existing. A missing position is not an error.
type PositionError struct {
	Symbol string
	Err    error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position for %s: %v", e.Symbol, e.Err)
}

func (e *PositionError) Unwrap() error { return e.Err }

// OrderError carries the brokerage's rejection message for a submitted order.
// Orders are never retried automatically.
type OrderError struct {
	Symbol  string
	Message string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order for %s rejected: %s", e.Symbol, e.Message)
}
