package templates

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/spf13/viper"

	"options-lab/internal/errors"
	"options-lab/internal/models"
	"options-lab/internal/validation"
)

// CustomFileName is the user template file looked up in the config directory.
const CustomFileName = "templates.toml"

// customFile mirrors templates.toml:
//
//	[[template]]
//	id = "wide-condor"
//	name = "Wide Iron Condor"
//	outlook = "neutral"
//
//	  [[template.legs]]
//	  type = "put"
//	  action = "buy"
//	  strike = "center - 3*width"
type customFile struct {
	Templates []customTemplate `mapstructure:"template"`
}

type customTemplate struct {
	ID            string      `mapstructure:"id"`
	Name          string      `mapstructure:"name"`
	Description   string      `mapstructure:"description"`
	Outlook       string      `mapstructure:"outlook"`
	RequiresStock bool        `mapstructure:"requires_stock"`
	Legs          []customLeg `mapstructure:"legs"`
}

type customLeg struct {
	Type     string `mapstructure:"type"`
	Action   string `mapstructure:"action"`
	Strike   string `mapstructure:"strike"`
	Quantity int    `mapstructure:"quantity"`
	Expiry   string `mapstructure:"expiry"`
}

// LoadCustom reads user-defined templates from a TOML file. A missing file
// yields no templates and no error.
func LoadCustom(path string) ([]Template, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var file customFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	out := make([]Template, 0, len(file.Templates))
	for _, raw := range file.Templates {
		t, err := raw.build()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c customTemplate) build() (Template, error) {
	t := Template{
		ID:            ID(strings.TrimSpace(c.ID)),
		Name:          c.Name,
		Description:   c.Description,
		Outlook:       Outlook(strings.ToLower(c.Outlook)),
		RequiresStock: c.RequiresStock,
		Custom:        true,
	}
	if t.Name == "" {
		t.Name = string(t.ID)
	}
	if t.Outlook == "" {
		t.Outlook = Neutral
	}

	for i, l := range c.Legs {
		shape, err := l.build()
		if err != nil {
			return Template{}, errors.NewTemplateError(string(t.ID), i, err)
		}
		t.Legs = append(t.Legs, shape)
	}
	if err := t.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

func (l customLeg) build() (LegShape, error) {
	typ, err := models.ParseOptionType(l.Type)
	if err != nil {
		return LegShape{}, fmt.Errorf("%w: %v", errors.ErrInvalidLeg, err)
	}
	action, err := models.ParseAction(l.Action)
	if err != nil {
		return LegShape{}, fmt.Errorf("%w: %v", errors.ErrInvalidLeg, err)
	}
	expiry, err := ParseExpiry(strings.ToLower(strings.TrimSpace(l.Expiry)))
	if err != nil {
		return LegShape{}, fmt.Errorf("%w: %v", errors.ErrInvalidLeg, err)
	}
	offset, err := StrikeOffset(l.Strike)
	if err != nil {
		return LegShape{}, err
	}
	qty := l.Quantity
	if qty == 0 {
		qty = 1
	}
	return LegShape{Type: typ, Action: action, StrikeOffset: offset, Quantity: qty, Expiry: expiry}, nil
}

// StrikeOffset evaluates a strike expression such as "center + 2*width" and
// returns its offset in widths. The expression must have the form
// center + k*width for a constant k; anything else is ErrInvalidExpression.
func StrikeOffset(expr string) (float64, error) {
	if err := validation.Expression(expr); err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrInvalidExpression, err)
	}
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidExpression, "%q: %v", expr, err)
	}

	at := func(center, width float64) (float64, error) {
		result, err := e.Evaluate(map[string]interface{}{"center": center, "width": width})
		if err != nil {
			return 0, errors.Wrapf(errors.ErrInvalidExpression, "%q: %v", expr, err)
		}
		f, ok := result.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, errors.Wrapf(errors.ErrInvalidExpression, "%q does not evaluate to a number", expr)
		}
		return f, nil
	}

	// Sample a few points to pin down center + k*width.
	origin, err := at(0, 0)
	if err != nil {
		return 0, err
	}
	unitCenter, err := at(1, 0)
	if err != nil {
		return 0, err
	}
	k, err := at(0, 1)
	if err != nil {
		return 0, err
	}
	check, err := at(100, 5)
	if err != nil {
		return 0, err
	}

	const tol = 1e-9
	if math.Abs(origin) > tol || math.Abs(unitCenter-1) > tol || math.Abs(check-(100+5*k)) > tol {
		return 0, errors.Wrapf(errors.ErrInvalidExpression, "%q is not of the form center + k*width", expr)
	}
	return k, nil
}
