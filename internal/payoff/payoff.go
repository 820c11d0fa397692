// Package payoff generates profit-and-loss curves for a single option position.
//
// All values are per share; multiply by the contract multiplier and the
// quantity for a position-level figure.
package payoff

import (
	"iter"
	"math"

	"options-lab/internal/models"
	"options-lab/internal/pricing"
)

// Sweep and grid dimensions.
const (
	DefaultCurveRange = 0.30
	CurveSteps        = 100

	GridRange    = 0.25
	GridRowSteps = 15
	GridMaxSteps = 8
)

// BreakEven returns the underlying price at which a long position breaks even at expiry.
func BreakEven(strike, premium float64, t models.OptionType) float64 {
	if t == models.Put {
		return strike - premium
	}
	return strike + premium
}

// PayoffCurve yields the at-expiration P&L of a long option across
// [price*(1-rng), price*(1+rng)] in CurveSteps equal steps (CurveSteps+1 points).
// A non-positive rng selects DefaultCurveRange. The sequence can be ranged
// over any number of times.
func PayoffCurve(strike, premium float64, t models.OptionType, currentPrice, rng float64) iter.Seq[models.PayoffPoint] {
	if rng <= 0 {
		rng = DefaultCurveRange
	}
	return Sweep(currentPrice, rng, CurveSteps, func(s float64) float64 {
		return pricing.Intrinsic(s, strike, t) - premium
	})
}

// Sweep yields f evaluated at steps+1 evenly spaced prices across
// [center*(1-rng), center*(1+rng)].
func Sweep(center, rng float64, steps int, f func(price float64) float64) iter.Seq[models.PayoffPoint] {
	lo := center * (1 - rng)
	hi := center * (1 + rng)
	return func(yield func(models.PayoffPoint) bool) {
		for i := 0; i <= steps; i++ {
			s := lo + (hi-lo)*float64(i)/float64(steps)
			if !yield(models.PayoffPoint{StockPrice: s, PnL: f(s)}) {
				return
			}
		}
	}
}

// Grid is a price-by-day matrix of theoretical P&L.
// Values[i][j] is the P&L at Prices[i] after Days[j] days have elapsed.
type Grid struct {
	Prices []float64   `json:"prices"`
	Days   []int       `json:"days"`
	Values [][]float64 `json:"values"`
}

// Cell is one entry of a Grid.
type Cell struct {
	Row, Col int
	Price    float64
	Day      int
	PnL      float64
}

// Cells yields every grid cell row by row.
func (g Grid) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for i, p := range g.Prices {
			for j, d := range g.Days {
				if !yield(Cell{Row: i, Col: j, Price: p, Day: d, PnL: g.Values[i][j]}) {
					return
				}
			}
		}
	}
}

// TimeValueGrid prices a long option on a grid of underlying prices
// (±GridRange around currentPrice, GridRowSteps steps) and elapsed days
// (0 to daysToExpiry in at most GridMaxSteps steps). Each cell is the
// Black-Scholes value with the remaining time minus the premium paid.
func TimeValueGrid(strike, premium float64, t models.OptionType, currentPrice float64, daysToExpiry int, sigma, r float64) Grid {
	g := Grid{Days: DayOffsets(daysToExpiry)}
	for p := range Sweep(currentPrice, GridRange, GridRowSteps, func(float64) float64 { return 0 }) {
		g.Prices = append(g.Prices, p.StockPrice)
	}

	g.Values = make([][]float64, len(g.Prices))
	for i, s := range g.Prices {
		row := make([]float64, len(g.Days))
		for j, day := range g.Days {
			years := float64(daysToExpiry-day) / pricing.DaysPerYear
			row[j] = pricing.Price(s, strike, years, r, sigma, t) - premium
		}
		g.Values[i] = row
	}
	return g
}

// DayOffsets splits [0, daysToExpiry] into at most GridMaxSteps equal steps,
// always including day 0 and the expiry day.
func DayOffsets(daysToExpiry int) []int {
	if daysToExpiry <= 0 {
		return []int{0}
	}
	step := int(math.Ceil(float64(daysToExpiry) / GridMaxSteps))
	days := make([]int, 0, GridMaxSteps+1)
	for d := 0; d < daysToExpiry; d += step {
		days = append(days, d)
	}
	return append(days, daysToExpiry)
}
