package templates

import (
	"time"

	"options-lab/internal/models"
	"options-lab/internal/pricing"
	"options-lab/internal/strategy"
)

// PreviewParams describes the hypothetical market a template is priced in
// when no option chain is available.
type PreviewParams struct {
	Center     float64   // center strike
	Width      float64   // strike width unit
	Volatility float64   // flat implied volatility for every leg
	Near       time.Time // expiry of Near legs
	Far        time.Time // expiry of Far legs; zero means Near plus 30 days
	Quantity   int       // multiplier applied to every leg's quantity; zero means 1
}

// DefaultFarGap is added to the near expiry when a two-expiry template is
// previewed without a far date.
const DefaultFarGap = 30 * 24 * time.Hour

// Preview turns t into concrete legs priced with Black-Scholes at a flat
// volatility, so a template can be analyzed without market quotes. Check
// t.CheckStrikes first: a strike that is not positive prices as NaN.
func Preview(t Template, market models.MarketState, p PreviewParams) []models.OptionLeg {
	far := p.Far
	if far.IsZero() {
		far = p.Near.Add(DefaultFarGap)
	}
	qty := p.Quantity
	if qty < 1 {
		qty = 1
	}

	shapes := t.Resolve(p.Center, p.Width)
	legs := make([]models.OptionLeg, len(shapes))
	for i, s := range shapes {
		exp := p.Near
		if s.Expiry == Far {
			exp = far
		}
		years := float64(strategy.DaysBetween(market.EvaluationDate, exp)) / pricing.DaysPerYear
		legs[i] = models.OptionLeg{
			Type:              s.Type,
			Action:            s.Action,
			Strike:            s.Strike,
			Premium:           pricing.Price(market.UnderlyingPrice, s.Strike, years, market.RiskFreeRate, p.Volatility, s.Type),
			Quantity:          s.Quantity * qty,
			Expiration:        exp,
			ImpliedVolatility: p.Volatility,
		}
	}
	return legs
}
