package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"options-lab/internal/models"
)

func TestProperty_StrategyEngine(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("buying and selling the same leg nets to zero", prop.ForAll(
		func(strike, premium, price float64, isPut bool) bool {
			typ := models.Call
			if isPut {
				typ = models.Put
			}
			legs := []models.OptionLeg{
				leg(typ, models.Buy, strike, premium),
				leg(typ, models.Sell, strike, premium),
			}
			return math.Abs(PnLAtExpiration(legs, price)) < 1e-9 && NetPremium(legs) == 0
		},
		gen.Float64Range(10, 500),
		gen.Float64Range(0, 30),
		gen.Float64Range(1, 1000),
		gen.Bool(),
	))

	properties.Property("a long option never loses more than its premium", prop.ForAll(
		func(moneyness, premium, spot float64, isPut bool) bool {
			typ := models.Call
			if isPut {
				typ = models.Put
			}
			strike := spot * moneyness
			m := ComputeMetrics([]models.OptionLeg{leg(typ, models.Buy, strike, premium)}, spot, 0)
			want := -premium * models.ContractMultiplier
			return math.Abs(m.MaxLoss-want) < 1e-9 && !m.IsCredit
		},
		gen.Float64Range(0.8, 1.2),
		gen.Float64Range(0.1, 20),
		gen.Float64Range(50, 150),
		gen.Bool(),
	))

	properties.Property("metrics are ordered and breakevens ascend", prop.ForAll(
		func(spot, width, credit float64) bool {
			legs := []models.OptionLeg{
				leg(models.Put, models.Buy, spot-2*width, credit/4),
				leg(models.Put, models.Sell, spot-width, credit/2),
				leg(models.Call, models.Sell, spot+width, credit/2),
				leg(models.Call, models.Buy, spot+2*width, credit/4),
			}
			m := ComputeMetrics(legs, spot, 0)
			if m.MaxLoss > m.MaxProfit {
				return false
			}
			for i := 1; i < len(m.Breakevens); i++ {
				if m.Breakevens[i] < m.Breakevens[i-1] {
					return false
				}
			}
			// Interpolation is exact unless a strike falls inside the bracketing step.
			for _, be := range m.Breakevens {
				if math.Abs(PnLAtExpiration(legs, be)) > ScanStep*models.ContractMultiplier {
					return false
				}
			}
			return m.IsCredit
		},
		gen.Float64Range(50, 500),
		gen.Float64Range(1, 10),
		gen.Float64Range(0.1, 3),
	))

	properties.Property("quantity scales P&L linearly", prop.ForAll(
		func(qty int, price float64) bool {
			one := leg(models.Call, models.Sell, 100, 3)
			many := one
			many.Quantity = qty
			return math.Abs(LegPnLAtExpiration(many, price)-float64(qty)*LegPnLAtExpiration(one, price)) < 1e-6
		},
		gen.IntRange(1, 50),
		gen.Float64Range(1, 300),
	))

	properties.TestingRun(t)
}
