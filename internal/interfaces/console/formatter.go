package console

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"

	"tickfolio/internal/domain"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
	ansiBold   = "\033[1m"

	// clear screen, cursor home
	ansiClearScreen = "\033[2J\033[1;1H"
)

func colorize(s, c string) string { return c + s + ansiReset }

func dirColor(d domain.Direction) string {
	switch d {
	case domain.DirectionUp:
		return ansiGreen
	case domain.DirectionDown:
		return ansiRed
	default:
		return ansiYellow
	}
}

// Formatter renders a snapshot as a fixed-width table.
type Formatter struct {
	NameWidth int
}

func NewFormatter() *Formatter {
	return &Formatter{NameWidth: 28}
}

func (f *Formatter) Render(snap domain.ValuationSnapshot) string {
	var sb strings.Builder

	sb.WriteString(colorize("[TICKFOLIO] ", ansiDim))
	sb.WriteString(snap.AsOf.Local().Format("2006-01-02 15:04:05"))
	sb.WriteString("  home=")
	sb.WriteString(snap.Home.String())
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "%-16s %-*s %12s %12s %-4s %8s %18s\n",
		"SYMBOL", f.NameWidth, "NAME", "QTY", "PRICE", "CCY", "CHG%", "VALUE")

	for _, p := range snap.Positions {
		name := truncate(p.Name, f.NameWidth)
		if !p.Priced {
			line := fmt.Sprintf("%-16s %-*s %12s %12s %-4s %8s %18s",
				p.Symbol, f.NameWidth, name, formatQty(p.Quantity), "--", p.Currency, "--", "--")
			sb.WriteString(colorize(line, ansiDim))
			sb.WriteString("\n")
			continue
		}

		price := colorize(fmt.Sprintf("%12.2f", p.LastPrice), dirColor(p.Direction))
		chg := fmt.Sprintf("%+7.2f%%", p.ChangePercent)
		chgCol := ansiYellow
		switch {
		case p.ChangePercent > 0:
			chgCol = ansiGreen
		case p.ChangePercent < 0:
			chgCol = ansiRed
		}
		fmt.Fprintf(&sb, "%-16s %-*s %12s %s %-4s %s %18s\n",
			p.Symbol, f.NameWidth, name, formatQty(p.Quantity), price, p.Currency,
			colorize(chg, chgCol), Money(p.Value, snap.Home))
	}

	sb.WriteString("\n")
	total := fmt.Sprintf("%-16s %*s %18s", "TOTAL", f.NameWidth+12+12+4+8+4, "", Money(snap.Total, snap.Home))
	sb.WriteString(colorize(total, ansiBold))
	if snap.Unpriced > 0 {
		sb.WriteString(colorize(fmt.Sprintf("  (%d unpriced)", snap.Unpriced), ansiDim))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Money formats v in currency c the way go-money displays it.
func Money(v float64, c domain.Currency) string {
	return money.NewFromFloat(v, c.String()).Display()
}

func formatQty(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return fmt.Sprintf("%.4f", q)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
