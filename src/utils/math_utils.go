package utils

import "math"

// RoundFloat rounds a float64 to a specified number of decimal places.
func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// RoundCents rounds a monetary amount to whole cents.
func RoundCents(val float64) float64 {
	return RoundFloat(val, 2)
}

// NearlyZero reports whether a quantity is zero within float tolerance.
// Lot quantities shrink by repeated subtraction, so exact zero is not reliable.
func NearlyZero(val float64) bool {
	return math.Abs(val) < 1e-9
}
