// Package report renders regimens, plan history and concentration charts
// for the terminal.
package report

import (
	"fmt"
	"math"
)

// Clock formats decimal hours as HH:MM on a 24h dial. Negative hours wrap
// into the previous day.
func Clock(hours float64) string {
	total := int(math.Round(hours * 60))
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Ordinal returns 1st, 2nd, 3rd, 4th, ... 11th, 12th, 13th, 21st.
func Ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return fmt.Sprintf("%dth", n)
	}
	switch n % 10 {
	case 1:
		return fmt.Sprintf("%dst", n)
	case 2:
		return fmt.Sprintf("%dnd", n)
	case 3:
		return fmt.Sprintf("%drd", n)
	default:
		return fmt.Sprintf("%dth", n)
	}
}
