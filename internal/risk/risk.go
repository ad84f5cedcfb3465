package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/macross-trading/macross/internal/models"
)

// Manager handles pre-trade checks
type Manager struct{}

// NewManager creates a new risk manager
func NewManager() *Manager {
	return &Manager{}
}

// CheckResult contains the result of a risk check
type CheckResult struct {
	Passed bool
	Reason string
}

// ValidateOrder performs pre-trade checks against the account. A failed
// check skips the order for this tick; it is not an error.
func (m *Manager) ValidateOrder(order *models.OrderRequest, account *models.Account, price decimal.Decimal) CheckResult {
	if account.TradingBlocked || account.AccountBlocked {
		return CheckResult{
			Passed: false,
			Reason: "trading is blocked on this account",
		}
	}

	if order.Side == models.Buy {
		orderValue := price.Mul(order.Qty)
		if orderValue.GreaterThan(account.BuyingPower) {
			return CheckResult{
				Passed: false,
				Reason: fmt.Sprintf("insufficient buying power: need $%.2f, have $%.2f",
					orderValue.InexactFloat64(), account.BuyingPower.InexactFloat64()),
			}
		}
	}

	return CheckResult{Passed: true}
}
