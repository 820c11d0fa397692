package strategy

import (
	"math"

	"options-lab/internal/models"
	"options-lab/internal/pricing"
)

// ProbabilityBelow is the risk-neutral probability that a lognormal
// underlying starting at spot finishes below price after years.
func ProbabilityBelow(spot, price, years, r, sigma float64) float64 {
	switch {
	case price <= 0:
		return 0
	case years <= 0 || sigma <= 0:
		if spot < price {
			return 1
		}
		return 0
	}
	volT := sigma * math.Sqrt(years)
	d2 := (math.Log(spot/price) + (r-0.5*sigma*sigma)*years) / volT
	return pricing.NormalCDF(-d2)
}

// ProbabilityOfProfit splits the price axis at the breakevens and adds up
// the probability of every interval where the at-expiration P&L is positive.
// sigma is the volatility assumed for the underlying and years the time to
// the position's expiry.
func ProbabilityOfProfit(legs []models.OptionLeg, breakevens []float64, spot, years, r, sigma float64) float64 {
	edges := append([]float64{0}, breakevens...)
	edges = append(edges, math.Inf(1))

	var p float64
	for i := 0; i+1 < len(edges); i++ {
		lo, hi := edges[i], edges[i+1]
		if PnLAtExpiration(legs, probePoint(lo, hi)) <= 0 {
			continue
		}
		p += cumulative(spot, hi, years, r, sigma) - cumulative(spot, lo, years, r, sigma)
	}
	return math.Min(math.Max(p, 0), 1)
}

func cumulative(spot, price, years, r, sigma float64) float64 {
	if math.IsInf(price, 1) {
		return 1
	}
	return ProbabilityBelow(spot, price, years, r, sigma)
}

// probePoint picks a price strictly inside (lo, hi).
func probePoint(lo, hi float64) float64 {
	if math.IsInf(hi, 1) {
		return lo*1.1 + 1
	}
	return (lo + hi) / 2
}
