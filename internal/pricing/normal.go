// Package pricing implements closed-form European option valuation.
//
// Everything here is a pure function of its arguments. Inputs are not
// validated: a negative price or strike yields NaN rather than an error.
package pricing

import "math"

// Abramowitz & Stegun 7.1.26 coefficients for erf, |error| <= 1.5e-7.
const (
	erfP  = 0.3275911
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// NormalCDF returns the standard normal cumulative distribution at x.
func NormalCDF(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return math.NaN()
	case math.IsInf(x, 1):
		return 1
	case math.IsInf(x, -1):
		return 0
	case x == 0:
		return 0.5
	}
	e := erf(math.Abs(x) / math.Sqrt2)
	if x < 0 {
		return 0.5 * (1 - e)
	}
	return 0.5 * (1 + e)
}

// NormalPDF returns the standard normal density at x.
func NormalPDF(x float64) float64 {
	return invSqrt2Pi * math.Exp(-0.5*x*x)
}

// erf approximates the error function for x >= 0.
func erf(x float64) float64 {
	t := 1 / (1 + erfP*x)
	poly := ((((erfA5*t+erfA4)*t+erfA3)*t+erfA2)*t + erfA1) * t
	return 1 - poly*math.Exp(-x*x)
}
