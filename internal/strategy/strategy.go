// Package strategy evaluates multi-leg option positions: combined P&L at and
// before expiration, aggregate Greeks and payoff metrics.
//
// Nothing in this package validates its input or returns an error. A leg with
// a non-positive strike or a zero expiration simply produces NaN or Inf in the
// results; callers reject such legs before they get here.
package strategy

import (
	"iter"
	"math"
	"time"

	"options-lab/internal/models"
	"options-lab/internal/payoff"
	"options-lab/internal/pricing"
)

const (
	// AtExpiration asks PnL and Curve for the at-expiration payoff.
	AtExpiration = -1

	// DefaultSearchRange is the fraction of the current price scanned either side by ComputeMetrics.
	DefaultSearchRange = 0.5

	// ScanStep is the price increment of the metrics scan.
	ScanStep = 0.5

	// MinGreeksYears floors the time to expiry used for aggregate Greeks.
	MinGreeksYears = 0.001

	upperProbe     = 3.0
	lowerProbe     = 0.1
	unboundedRatio = 1.5
)

// LegPnLAtExpiration returns the leg's P&L in dollars if the underlying settles at price.
func LegPnLAtExpiration(leg models.OptionLeg, price float64) float64 {
	value := pricing.Intrinsic(price, leg.Strike, leg.Type)
	return legPnL(leg, value)
}

// PnLAtExpiration returns the combined at-expiration P&L of all legs.
func PnLAtExpiration(legs []models.OptionLeg, price float64) float64 {
	var total float64
	for _, leg := range legs {
		total += LegPnLAtExpiration(leg, price)
	}
	return total
}

// PnL values the position daysFromNow days after market.EvaluationDate with
// the underlying at price. Each leg keeps its own expiry: a leg with no time
// left is worth its intrinsic value while the others are priced with
// Black-Scholes at their own implied volatility. Passing AtExpiration
// values every leg at intrinsic.
func PnL(legs []models.OptionLeg, price float64, market models.MarketState, daysFromNow int) float64 {
	if daysFromNow == AtExpiration {
		return PnLAtExpiration(legs, price)
	}

	var total float64
	for _, leg := range legs {
		remaining := DaysBetween(market.EvaluationDate, leg.Expiration) - daysFromNow
		var value float64
		if remaining <= 0 {
			value = pricing.Intrinsic(price, leg.Strike, leg.Type)
		} else {
			years := float64(remaining) / pricing.DaysPerYear
			value = pricing.Price(price, leg.Strike, years, market.RiskFreeRate, leg.ImpliedVolatility, leg.Type)
		}
		total += legPnL(leg, value)
	}
	return total
}

func legPnL(leg models.OptionLeg, value float64) float64 {
	return leg.Action.Sign() * (value - leg.Premium) * models.ContractMultiplier * float64(leg.Quantity)
}

// Greeks sums the per-share Greeks of every leg, signed by action and scaled
// by quantity. Time to expiry is floored at MinGreeksYears so that legs
// expiring today still report a gamma and vega.
func Greeks(legs []models.OptionLeg, market models.MarketState) models.Greeks {
	var total models.Greeks
	for _, leg := range legs {
		years := float64(DaysBetween(market.EvaluationDate, leg.Expiration)) / pricing.DaysPerYear
		years = math.Max(years, MinGreeksYears)
		g := pricing.Calculate(market.UnderlyingPrice, leg.Strike, years, market.RiskFreeRate, leg.ImpliedVolatility, leg.Type)
		total = total.Add(g, leg.Action.Sign()*float64(leg.Quantity))
	}
	return total
}

// NetPremium is the premium received minus the premium paid, in dollars.
// Positive means the position opens for a credit.
func NetPremium(legs []models.OptionLeg) float64 {
	var net float64
	for _, leg := range legs {
		net -= leg.Action.Sign() * leg.Premium * models.ContractMultiplier * float64(leg.Quantity)
	}
	return net
}

// ComputeMetrics scans the at-expiration P&L in ScanStep increments over
// [currentPrice*(1-searchRange), currentPrice*(1+searchRange)] and reports the
// extremes, the breakevens and the net premium. A non-positive searchRange
// selects DefaultSearchRange.
//
// Whether a side is unbounded is decided by probing the P&L at 3x and 0.1x
// the current price: a probe beyond 1.5x a scanned profit (or loss) marks
// that extreme as infinite. When the scan saw no profit (or no loss) at all,
// a probe that goes further simply becomes the reported extreme. This is a
// heuristic and can misjudge payoffs that keep growing past the scan window
// but are still capped, such as a long put; see Slopes for the exact
// asymptotic behaviour.
func ComputeMetrics(legs []models.OptionLeg, currentPrice, searchRange float64) models.StrategyMetrics {
	if searchRange <= 0 {
		searchRange = DefaultSearchRange
	}
	lo := currentPrice * (1 - searchRange)
	hi := currentPrice * (1 + searchRange)

	m := models.StrategyMetrics{
		MaxProfit:  math.Inf(-1),
		MaxLoss:    math.Inf(1),
		Breakevens: []float64{},
	}

	steps := -1
	if hi >= lo {
		steps = int(math.Floor((hi - lo) / ScanStep))
	}

	var prevPrice, prevPnL float64
	first := true
	for i := 0; i <= steps; i++ {
		p := lo + float64(i)*ScanStep
		v := PnLAtExpiration(legs, p)

		if v > m.MaxProfit {
			m.MaxProfit, m.MaxProfitPrice = v, p
		}
		if v < m.MaxLoss {
			m.MaxLoss, m.MaxLossPrice = v, p
		}
		if !first && crosses(prevPnL, v) {
			m.Breakevens = append(m.Breakevens, interpolate(prevPrice, prevPnL, p, v))
		}
		prevPrice, prevPnL, first = p, v, false
	}

	if first {
		m.MaxProfit, m.MaxLoss = math.NaN(), math.NaN()
	} else {
		for _, probe := range []float64{currentPrice * upperProbe, currentPrice * lowerProbe} {
			v := PnLAtExpiration(legs, probe)
			switch {
			case m.MaxProfit > 0 && v > unboundedRatio*m.MaxProfit:
				m.MaxProfit, m.MaxProfitPrice = math.Inf(1), probe
			case v > m.MaxProfit && m.MaxProfit <= 0:
				m.MaxProfit, m.MaxProfitPrice = v, probe
			}
			switch {
			case m.MaxLoss < 0 && v < unboundedRatio*m.MaxLoss:
				m.MaxLoss, m.MaxLossPrice = math.Inf(-1), probe
			case v < m.MaxLoss && m.MaxLoss >= 0:
				m.MaxLoss, m.MaxLossPrice = v, probe
			}
		}
	}

	m.NetPremium = NetPremium(legs)
	m.IsCredit = m.NetPremium > 0
	return m
}

// crosses reports a strict sign change: negative to non-negative or the reverse.
func crosses(prev, cur float64) bool {
	return (prev < 0 && cur >= 0) || (prev >= 0 && cur < 0)
}

// interpolate returns where the segment (p0,v0)-(p1,v1) meets zero.
func interpolate(p0, v0, p1, v1 float64) float64 {
	if v1 == v0 {
		return p1
	}
	return p0 + (p1-p0)*(-v0)/(v1-v0)
}

// Slopes returns the exact rate of change of the at-expiration P&L, in
// dollars per $1 move of the underlying, as the price goes to zero (down)
// and to infinity (up). A positive up slope means unbounded profit, a
// negative one unbounded loss. On the downside the payoff is always bounded
// since the price cannot go below zero.
func Slopes(legs []models.OptionLeg) (down, up float64) {
	for _, leg := range legs {
		w := leg.Action.Sign() * models.ContractMultiplier * float64(leg.Quantity)
		if leg.Type == models.Put {
			down -= w
		} else {
			up += w
		}
	}
	return down, up
}

// Curve yields the strategy P&L over CurveSteps equal steps across
// [S*(1-rng), S*(1+rng)], where S is the market's underlying price. A
// non-positive rng selects payoff.DefaultCurveRange. Use AtExpiration for
// daysFromNow to get the expiry payoff.
func Curve(legs []models.OptionLeg, market models.MarketState, daysFromNow int, rng float64) iter.Seq[models.PayoffPoint] {
	if rng <= 0 {
		rng = payoff.DefaultCurveRange
	}
	return payoff.Sweep(market.UnderlyingPrice, rng, payoff.CurveSteps, func(s float64) float64 {
		return PnL(legs, s, market, daysFromNow)
	})
}

// DaysBetween counts calendar days from one date to another, ignoring the
// time of day. Both instants are read in UTC.
func DaysBetween(from, to time.Time) int {
	f := civil(from)
	t := civil(to)
	return int(math.Round(t.Sub(f).Hours() / 24))
}

func civil(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
