package formatters

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/macross-trading/macross/internal/bot"
	"github.com/macross-trading/macross/internal/store"
)

// Colors for different values
var (
	ColorGreen  = text.FgGreen
	ColorRed    = text.FgRed
	ColorYellow = text.FgYellow
)

// FormatMoney formats a dollar amount
func FormatMoney(amount decimal.Decimal) string {
	return fmt.Sprintf("$%.2f", amount.InexactFloat64())
}

// FormatStatus colors the bot status
func FormatStatus(status store.Status) string {
	switch status {
	case store.StatusRunning:
		return ColorGreen.Sprint("RUNNING")
	case store.StatusStopped:
		return ColorRed.Sprint("STOPPED")
	default:
		return ColorYellow.Sprint(string(status))
	}
}

// FormatBotStatusTable renders the running bot snapshot as a table
func FormatBotStatusTable(snapshot *bot.StatusSnapshot) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Symbol", "Strategy", "Short/Long", "Trade Amount", "Position Value", "Status"})
	t.AppendRow(table.Row{
		snapshot.TickerTrading,
		snapshot.Strategy,
		fmt.Sprintf("%d/%d", snapshot.ShortTermInterval, snapshot.LongTermInterval),
		FormatMoney(snapshot.StartAmount),
		FormatMoney(snapshot.Balance),
		FormatStatus(snapshot.Status),
	})

	return t.Render()
}
