package extractor

import (
	"strconv"
	"strings"
)

// FormatMoney formats an amount with two decimals.
func FormatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatQuantity formats a quantity with the fewest digits needed.
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JoinNonEmpty joins the non-empty values with "; ".
func JoinNonEmpty(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, "; ")
}
