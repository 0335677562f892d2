// Package format renders auction prices for display.
package format

import (
	"math"
	"strconv"
	"strings"
)

// Dollars returns a whole-dollar amount with thousands separators (e.g.,
// "$1,250,000"), the way auction prices are quoted.
func Dollars(amount float64) string {
	rounded := math.Round(amount)
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}
	return sign + "$" + groupThousands(strconv.FormatFloat(rounded, 'f', 0, 64))
}

// Compact returns a short price for chart axes: "$950", "$450K", "$1.25M".
func Compact(amount float64) string {
	abs := math.Abs(amount)
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e6:
		return sign + "$" + trimFloat(abs/1e6) + "M"
	case abs >= 1e3:
		return sign + "$" + trimFloat(abs/1e3) + "K"
	default:
		return Dollars(amount)
	}
}

// trimFloat keeps at most two decimals and drops trailing zeros.
func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
