package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/felitouuuu/Naruto-sub000/internal/pricefeed"
	"github.com/felitouuuu/Naruto-sub000/internal/storage"
	"github.com/felitouuuu/Naruto-sub000/pkg/tgui"
)

// renderPost builds the periodic post body from the quote and the
// subscription metadata.
func renderPost(q pricefeed.Quote, sub storage.Subscription) string {
	lines := []tgui.H{
		tgui.B("💰 " + strings.ToUpper(q.Coin)),
		tgui.Line("Price", tgui.Code("$"+FormatPrice(q.PriceUSD))),
		tgui.Line("24h", tgui.Esc(FormatChange(q.Change24h))),
	}
	if !q.UpdatedAt.IsZero() {
		lines = append(lines, tgui.Line("Updated", tgui.Esc(q.UpdatedAt.UTC().Format(time.RFC3339))))
	}
	lines = append(lines, tgui.I(fmt.Sprintf("posted every %dm", sub.IntervalMinutes)))
	return tgui.JoinH("\n", lines...).String()
}

// FormatPrice renders a USD price with a precision that follows its
// magnitude: cents for normal prices, more digits for sub-cent coins.
func FormatPrice(p decimal.Decimal) string {
	abs := p.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return p.StringFixed(2)
	case abs.GreaterThanOrEqual(decimal.RequireFromString("0.01")):
		return p.StringFixed(4)
	default:
		return p.StringFixed(8)
	}
}

// FormatChange renders the 24h percent change, or "N/A" when the provider
// omitted it.
func FormatChange(change *decimal.Decimal) string {
	if change == nil {
		return "N/A"
	}
	sign := ""
	if change.IsPositive() {
		sign = "+"
	}
	return sign + change.StringFixed(2) + "%"
}
