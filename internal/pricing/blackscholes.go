package pricing

import (
	"math"

	"options-lab/internal/models"
)

// Display scalings applied to the raw Black-Scholes sensitivities.
const (
	DaysPerYear  = 365.0
	PercentPoint = 100.0
)

// Intrinsic returns the exercise value of an option at underlying price s.
func Intrinsic(s, k float64, t models.OptionType) float64 {
	if t == models.Put {
		return math.Max(0, k-s)
	}
	return math.Max(0, s-k)
}

// Price returns the Black-Scholes fair value of a European option.
//
// Parameters:
//   - s: underlying price
//   - k: strike
//   - years: time to expiry in years
//   - r: annual risk-free rate
//   - sigma: annual volatility (0.30 = 30%)
//   - t: call or put
//
// A non-positive time or volatility prices the option at intrinsic value.
func Price(s, k, years, r, sigma float64, t models.OptionType) float64 {
	if years <= 0 || sigma <= 0 {
		return Intrinsic(s, k, t)
	}
	d1, d2 := d1d2(s, k, years, r, sigma)
	disc := k * math.Exp(-r*years)
	if t == models.Put {
		return disc*NormalCDF(-d2) - s*NormalCDF(-d1)
	}
	return s*NormalCDF(d1) - disc*NormalCDF(d2)
}

// Calculate returns the fair value and all five Greeks in one pass.
// Theta is per calendar day, vega per 1% volatility and rho per 1% rate.
func Calculate(s, k, years, r, sigma float64, t models.OptionType) models.Greeks {
	if years <= 0 || sigma <= 0 {
		return degenerate(s, k, t)
	}

	sqrtT := math.Sqrt(years)
	d1, d2 := d1d2(s, k, years, r, sigma)
	pdf := NormalPDF(d1)
	disc := k * math.Exp(-r*years)

	g := models.Greeks{
		Gamma: pdf / (s * sigma * sqrtT),
		Vega:  s * sqrtT * pdf / PercentPoint,
	}
	decay := -s * pdf * sigma / (2 * sqrtT)

	if t == models.Put {
		g.Price = disc*NormalCDF(-d2) - s*NormalCDF(-d1)
		g.Delta = NormalCDF(d1) - 1
		g.Theta = (decay + r*disc*NormalCDF(-d2)) / DaysPerYear
		g.Rho = -years * disc * NormalCDF(-d2) / PercentPoint
		return g
	}

	g.Price = s*NormalCDF(d1) - disc*NormalCDF(d2)
	g.Delta = NormalCDF(d1)
	g.Theta = (decay - r*disc*NormalCDF(d2)) / DaysPerYear
	g.Rho = years * disc * NormalCDF(d2) / PercentPoint
	return g
}

// degenerate covers an expired or zero-volatility option: intrinsic value,
// a step delta and no other sensitivities.
func degenerate(s, k float64, t models.OptionType) models.Greeks {
	g := models.Greeks{Price: Intrinsic(s, k, t)}
	switch {
	case t == models.Put && s < k:
		g.Delta = -1
	case t != models.Put && s > k:
		g.Delta = 1
	}
	return g
}

func d1d2(s, k, years, r, sigma float64) (float64, float64) {
	volT := sigma * math.Sqrt(years)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*years) / volT
	return d1, d1 - volT
}
