package analytics

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCurrency renders amount as dollars with thousands separators and two
// decimals, e.g. "$1,234.56" or "-$12.00". Rounding is half away from zero on
// the shortest decimal form of amount.
func FormatCurrency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	cents := d.Sub(whole).StringFixed(2)[1:] // ".56"
	return sign + "$" + printer.Sprintf("%d", whole.IntPart()) + cents
}

// FormatNumber abbreviates large numbers: "1.2M", "3.4K", or the integer part
// below one thousand.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return "n/a"
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", n/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", n/1_000)
	default:
		return fmt.Sprintf("%d", int64(n))
	}
}
