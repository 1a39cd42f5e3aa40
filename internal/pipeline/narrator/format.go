package narrator

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatCurrency renders v as "$1,234.50", rounding half away from zero.
func formatCurrency(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	frac := fixed[strings.IndexByte(fixed, '.')+1:]
	return sign + "$" + printer.Sprintf("%d", d.IntPart()) + "." + frac
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// plural picks the singular form only for exactly one.
func plural(n int64, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

// number extracts a numeric value. integral reports whether the source type was an integer.
func number(v interface{}) (f float64, integral bool, ok bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true, true
	case int32:
		return float64(n), true, true
	case int64:
		return float64(n), true, true
	case uint32:
		return float64(n), true, true
	case uint64:
		return float64(n), true, true
	case float32:
		return float64(n), false, true
	case float64:
		return n, false, true
	case decimal.Decimal:
		return n.InexactFloat64(), false, true
	}
	return 0, false, false
}

// count accepts integers and whole floats.
func count(v interface{}) (int64, bool) {
	f, integral, ok := number(v)
	if !ok {
		if s, isStr := v.(string); isStr {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			return n, err == nil
		}
		return 0, false
	}
	if !integral && f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// monthLabel turns ISO dates into "March 2024"; other values print as-is.
func monthLabel(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return printer.Sprint(v)
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("January 2006")
		}
	}
	return s
}
