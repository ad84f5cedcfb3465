package signal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Action is the outcome of evaluating one tick
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
	ActionSkip Action = "skip"
)

// Params are the crossover strategy parameters for one bot run
type Params struct {
	ShortWindow int
	LongWindow  int
	TradeAmount decimal.Decimal
}

// Decision is the result of one strategy evaluation. Qty is set for buy/sell
// only; Reason explains holds and skips for observability.
type Decision struct {
	Action    Action
	Qty       decimal.Decimal
	ShortMA   decimal.Decimal
	LongMA    decimal.Decimal
	LastClose decimal.Decimal
	Reason    string
}

// MovingAverage computes the arithmetic mean of the last window prices.
// It reports false when the series is too short.
func MovingAverage(prices []decimal.Decimal, window int) (decimal.Decimal, bool) {
	if window <= 0 || len(prices) < window {
		return decimal.Zero, false
	}

	sum := decimal.Zero
	for _, price := range prices[len(prices)-window:] {
		sum = sum.Add(price)
	}
	return sum.Div(decimal.NewFromInt(int64(window))), true
}

// Evaluate derives a trade decision from the closing price series, the
// currently held quantity, and the strategy parameters. It is a pure
// function; prices are most-recent-last.
func Evaluate(prices []decimal.Decimal, position decimal.Decimal, p Params) Decision {
	if len(prices) < p.LongWindow {
		return Decision{
			Action: ActionSkip,
			Reason: fmt.Sprintf("not enough data for %d-bar average (%d bars)", p.LongWindow, len(prices)),
		}
	}

	shortMA, shortOK := MovingAverage(prices, p.ShortWindow)
	longMA, longOK := MovingAverage(prices, p.LongWindow)
	if !shortOK || !longOK {
		// Should not happen given the length check above
		return Decision{Action: ActionSkip, Reason: "could not compute moving averages"}
	}

	lastClose := prices[len(prices)-1]
	if !lastClose.IsPositive() {
		return Decision{
			Action:  ActionSkip,
			ShortMA: shortMA,
			LongMA:  longMA,
			Reason:  fmt.Sprintf("latest close %s is not a usable price", lastClose),
		}
	}
	d := Decision{ShortMA: shortMA, LongMA: longMA, LastClose: lastClose}

	switch {
	case shortMA.GreaterThan(longMA) && position.IsZero():
		qty := p.TradeAmount.Div(lastClose).Floor()
		if qty.LessThanOrEqual(decimal.Zero) {
			d.Action = ActionSkip
			d.Reason = "trade amount does not cover one share"
			return d
		}
		d.Action = ActionBuy
		d.Qty = qty
		d.Reason = "bullish crossover with no open position"

	case shortMA.GreaterThan(longMA):
		d.Action = ActionHold
		d.Reason = "bullish signal but already holding shares"

	case shortMA.LessThan(longMA) && position.GreaterThan(decimal.Zero):
		d.Action = ActionSell
		d.Qty = position
		d.Reason = "bearish crossover, closing position"

	case shortMA.LessThan(longMA):
		d.Action = ActionHold
		d.Reason = "bearish signal with nothing to sell"

	default:
		d.Action = ActionHold
		d.Reason = "no clear crossover signal"
	}

	return d
}
