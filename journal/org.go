package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for pasting into a journal.
// Structured facts go in the PROPERTIES drawer; the headings below it are left for notes.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %d %s (%s)", strings.ToUpper(t.Side), t.Quantity, t.Contract, shortID(t.TradeID))
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":POSITION_ID: %s\n", t.PositionID)
	fmt.Fprintf(&b, ":PHASE: %s\n", t.Phase)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":CONTRACT: %s\n", t.Contract)
	fmt.Fprintf(&b, ":QUANTITY: %d\n", t.Quantity)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.2f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.2f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", open)
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", close)
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Setup\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
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

// FormatDayOrg renders a day heading with a summary table followed by the
// day's trades.
func FormatDayOrg(day string, trades []TradeRecord) string {
	s := SummarizeTrades(trades)

	var b strings.Builder
	fmt.Fprintf(&b, "* %s\n", day)
	b.WriteString("| Trades | Wins | Losses | Net P/L | Profit Factor |\n")
	b.WriteString("|--------+------+--------+---------+---------------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %.2f | %.2f |\n", s.Trades, s.Wins, s.Losses, s.NetPL, s.ProfitFactor)
	if len(trades) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatTradesOrg(trades))
	}
	return b.String()
}

// shortID keeps the tail of an ID; ULIDs share their leading time bits.
func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
