package derive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// numberPrefix matches the leading numeric literal of a string the way a
// browser's parseFloat reads it.
var numberPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseNumber reads the leading number of s, ignoring leading whitespace and
// any trailing text ("70%" is 70). It reports false when s does not start
// with a number.
func ParseNumber(s string) (float64, bool) {
	m := numberPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Percent formats v with two decimals and a percent sign.
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// PercentOf parses raw, multiplies by scale and formats the result as a
// percentage. It returns "" when raw is empty or not a number.
func PercentOf(raw string, scale float64) string {
	v, ok := ParseNumber(raw)
	if !ok {
		return ""
	}
	return Percent(v * scale)
}

// Or returns v, or fallback when v is empty.
func Or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// ComparisonLabel compares two numeric levels and renders
// "<labelA> {>|<|=} <labelB>". It returns "N/A" if either level is not a
// number.
func ComparisonLabel(levelA, labelA, levelB, labelB string) string {
	a, ok := ParseNumber(levelA)
	if !ok {
		return "N/A"
	}
	b, ok := ParseNumber(levelB)
	if !ok {
		return "N/A"
	}

	symbol := "="
	switch {
	case a > b:
		symbol = ">"
	case a < b:
		symbol = "<"
	}
	return labelA + " " + symbol + " " + labelB
}
