package util

import (
	"math"
	"strconv"
)

// SafeDiv returns n/d, or 0 when d is zero to within 1e-12.
func SafeDiv(n, d float64) float64 {
	if math.Abs(d) <= 1e-12 {
		return 0
	}
	return n / d
}

// Clamp01 pins x into [0,1]; NaN maps to 0.
func Clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	return x
}

// Percent returns 100*part/total, or 0 when total is not positive.
func Percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * SafeDiv(part, total)
}

// Horner evaluates a polynomial whose coefficients are ordered from the
// highest degree down to the constant term.
func Horner(coeffs []float64, x float64) float64 {
	var acc float64
	for _, c := range coeffs {
		acc = acc*x + c
	}
	return acc
}

// Sq returns x*x.
func Sq(x float64) float64 { return x * x }

// FmtFloat formats for CSV output without exponent noise on common values.
func FmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// InRange01 reports whether x is a valid rate in [0,1].
func InRange01(x float64) bool {
	return !math.IsNaN(x) && Clamp01(x) == x
}
