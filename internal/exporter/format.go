package exporter

import (
	"math"
	"strconv"
)

// formatFloat formats an optional float for CSV output. A precision of zero
// or less writes the shortest representation that parses back to v.
func formatFloat(v *float64, precision int) string {
	if v == nil {
		return ""
	}
	if precision <= 0 {
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}
	return strconv.FormatFloat(*v, 'f', precision, 64)
}

// roundTo rounds v to precision decimals; zero or less leaves v untouched.
func roundTo(v float64, precision int) float64 {
	if precision <= 0 {
		return v
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatRate formats a fraction as a fixed four-decimal string
func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', 4, 64)
}
