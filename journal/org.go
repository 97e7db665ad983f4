package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a closed trade as an Org-mode block. Structured
// facts go in a PROPERTIES drawer so they stay searchable.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Symbol, t.Side, t.PositionID)
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":POSITION_ID: %s\n", t.PositionID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":VOLUME: %.2f\n", t.Volume)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	if !t.OpenTime.IsZero() {
		fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenTime.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.CloseTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":PROFIT: %.2f\n", t.Profit)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatReportLine renders a report as a single org list item.
func FormatReportLine(r ReportRecord) string {
	line := fmt.Sprintf("- [%s] signal %d %s %s %s", r.Time.UTC().Format("15:04:05"), r.SignalID, r.Symbol, r.Action, r.Status)
	if r.Ticket != 0 {
		line += fmt.Sprintf(" ticket=%d vol=%.2f @ %.5f", r.Ticket, r.Volume, r.Price)
	}
	if r.Message != "" {
		line += ": " + r.Message
	}
	return line
}
