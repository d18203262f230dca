package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseHours accepts decimal hours ("8.5") or clock notation ("08:30").
// Hours past 24 are allowed so a window can run over midnight.
func ParseHours(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time value")
	}
	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, err := strconv.Atoi(h)
		if err != nil || hours < 0 {
			return 0, fmt.Errorf("invalid hour in %q", s)
		}
		minutes, err := strconv.Atoi(m)
		if err != nil || minutes < 0 || minutes > 59 || len(m) != 2 {
			return 0, fmt.Errorf("invalid minutes in %q", s)
		}
		return float64(hours) + float64(minutes)/60, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid time %q (use 8.5 or 08:30)", s)
	}
	return v, nil
}
