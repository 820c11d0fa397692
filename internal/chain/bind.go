package chain

import (
	"fmt"
	"math"
	"time"

	"options-lab/internal/errors"
	"options-lab/internal/models"
	"options-lab/internal/templates"
)

// BindParams locates a template on a chain.
type BindParams struct {
	Center   float64   // center strike; zero means the at-the-money strike
	Width    float64   // strike width; zero means the chain's strike step
	Near     time.Time // expiry for near legs
	Far      time.Time // expiry for far legs, required by calendar and diagonal templates
	Quantity int       // multiplier for every leg; zero means 1
	MaxDrift float64   // largest accepted distance to a listed strike; zero means Width
}

// Bind resolves t against the chain and returns one leg per shape, each
// taking the nearest listed strike, the quote's mid price as premium and the
// quote's implied volatility.
func Bind(t templates.Template, c *models.OptionChain, p BindParams) ([]models.OptionLeg, error) {
	if p.Near.IsZero() {
		return nil, errors.NewTemplateError(string(t.ID), -1, fmt.Errorf("%w: no expiry given", errors.ErrInvalidLeg))
	}
	if t.RequiresTwoExpiries() && (p.Far.IsZero() || !civil(p.Far).After(civil(p.Near))) {
		return nil, errors.NewTemplateError(string(t.ID), -1,
			fmt.Errorf("%w: needs a far expiry after %s", errors.ErrInvalidLeg, p.Near.Format(DateLayout)))
	}

	if p.Center == 0 {
		atm, err := ATMStrike(c, p.Near)
		if err != nil {
			return nil, errors.NewTemplateError(string(t.ID), -1, err)
		}
		p.Center = atm
	}
	if p.Width == 0 {
		p.Width = StrikeStep(c, p.Near)
	}
	if p.MaxDrift == 0 {
		p.MaxDrift = p.Width
	}
	qty := max(p.Quantity, 1)

	shapes := t.Resolve(p.Center, p.Width)
	legs := make([]models.OptionLeg, 0, len(shapes))
	for i, s := range shapes {
		exp := p.Near
		if s.Expiry == templates.Far {
			exp = p.Far
		}
		q, err := Nearest(c, s.Type, exp, s.Strike)
		if err == nil && p.MaxDrift > 0 && math.Abs(q.Strike-s.Strike) > p.MaxDrift {
			err = errors.Wrapf(errors.ErrContractNotFound, "closest %s to %.2f is %.2f", s.Type, s.Strike, q.Strike)
		}
		if err != nil {
			return nil, errors.NewTemplateError(string(t.ID), i, err)
		}
		legs = append(legs, models.OptionLeg{
			Type:              s.Type,
			Action:            s.Action,
			Strike:            q.Strike,
			Premium:           q.MidPrice(),
			Quantity:          s.Quantity * qty,
			Expiration:        q.Expiration,
			ImpliedVolatility: q.ImpliedVolatility,
		})
	}
	return legs, nil
}
