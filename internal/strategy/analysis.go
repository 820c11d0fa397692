package strategy

import (
	"math"
	"slices"

	"options-lab/internal/models"
	"options-lab/internal/pricing"
)

// Options tunes Analyze. Zero ranges select the package defaults.
type Options struct {
	SearchRange float64 // ComputeMetrics window, fraction of spot
	CurveRange  float64 // Curve window, fraction of spot
	DaysFromNow int     // horizon for the curve; AtExpiration for the expiry payoff
}

// Analysis is everything a caller usually wants about a position in one value.
type Analysis struct {
	Legs       []models.OptionLeg     `json:"legs"`
	Metrics    models.StrategyMetrics `json:"metrics"`
	Greeks     models.Greeks          `json:"greeks"`
	Curve      []models.PayoffPoint   `json:"curve"`
	SlopeDown  float64                `json:"slope_down"`
	SlopeUp    float64                `json:"slope_up"`
	PnLAtSpot  float64                `json:"pnl_at_spot"`
	RewardRisk float64                `json:"reward_risk,omitempty"`
	PoP        float64                `json:"probability_of_profit"`
}

// Analyze computes metrics, aggregate Greeks and the P&L curve of legs against market.
func Analyze(legs []models.OptionLeg, market models.MarketState, opts Options) Analysis {
	a := Analysis{
		Legs:      legs,
		Metrics:   ComputeMetrics(legs, market.UnderlyingPrice, opts.SearchRange),
		Greeks:    Greeks(legs, market),
		Curve:     slices.Collect(Curve(legs, market, opts.DaysFromNow, opts.CurveRange)),
		PnLAtSpot: PnL(legs, market.UnderlyingPrice, market, opts.DaysFromNow),
	}
	a.SlopeDown, a.SlopeUp = Slopes(legs)
	a.RewardRisk = RewardRisk(a.Metrics)

	if len(legs) > 0 {
		years, sigma := horizon(legs, market)
		a.PoP = ProbabilityOfProfit(legs, a.Metrics.Breakevens, market.UnderlyingPrice, years, market.RiskFreeRate, sigma)
	}
	return a
}

// horizon returns the time to the earliest expiry and the quantity-weighted
// implied volatility of legs.
func horizon(legs []models.OptionLeg, market models.MarketState) (years, sigma float64) {
	days := math.MaxInt
	var weight float64
	for _, l := range legs {
		days = min(days, DaysBetween(market.EvaluationDate, l.Expiration))
		sigma += l.ImpliedVolatility * float64(l.Quantity)
		weight += float64(l.Quantity)
	}
	if weight > 0 {
		sigma /= weight
	}
	return float64(days) / pricing.DaysPerYear, sigma
}

// RewardRisk is max profit over the magnitude of max loss. It is zero when
// either side is unbounded or the position cannot lose.
func RewardRisk(m models.StrategyMetrics) float64 {
	if m.UnlimitedProfit() || m.UnlimitedLoss() || m.MaxLoss >= 0 || math.IsNaN(m.MaxProfit) {
		return 0
	}
	return m.MaxProfit / -m.MaxLoss
}
