// Package validation checks user-supplied legs, market snapshots and template
// inputs before they reach the pricing engine, which itself accepts anything.
package validation

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"options-lab/internal/errors"
	"options-lab/internal/models"
)

// Limits on user input. Per-field numeric bounds live in the struct tags.
const (
	MaxLegs       = 8
	MaxExpression = 100
)

var (
	// Ticker symbols: uppercase letters, digits and a few index/class separators
	symbolPattern = regexp.MustCompile(`^[A-Z0-9.^&-]{1,20}$`)

	// Strike expressions only reference center, width, numbers and arithmetic
	expressionPattern = regexp.MustCompile(`^[a-z0-9_+\-*/(). ]+$`)
)

type legInput struct {
	Type       string  `json:"type" validate:"oneof=call put"`
	Action     string  `json:"action" validate:"oneof=buy sell"`
	Strike     float64 `json:"strike" validate:"finite,gt=0,lte=10000000"`
	Premium    float64 `json:"premium" validate:"finite,gte=0,lte=10000000"`
	Quantity   int     `json:"quantity" validate:"min=1,max=10000"`
	Volatility float64 `json:"implied_volatility" validate:"finite,gte=0,lte=10"`
}

type quoteInput struct {
	Type              string  `json:"type" validate:"oneof=call put"`
	Strike            float64 `json:"strike" validate:"finite,gt=0,lte=10000000"`
	Bid               float64 `json:"bid" validate:"finite,gte=0"`
	Ask               float64 `json:"ask" validate:"finite,gte=0"`
	LastPrice         float64 `json:"last_price" validate:"finite,gte=0"`
	ImpliedVolatility float64 `json:"implied_volatility" validate:"finite,gte=0,lte=10"`
}

type marketInput struct {
	UnderlyingPrice float64 `json:"underlying_price" validate:"finite,gt=0,lte=10000000"`
	RiskFreeRate    float64 `json:"risk_free_rate" validate:"finite,gte=-0.2,lte=1"`
}

var validate = New()

// New returns a validator with this package's tags registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	Register(v)
	return v
}

// Register adds the "finite" tag and JSON field naming to v, so the same
// rules apply to gin request binding.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			x := f.Float()
			return !math.IsNaN(x) && !math.IsInf(x, 0)
		}
		return true
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Leg validates one leg. index is used in field names ("legs[2].strike").
func Leg(index int, l models.OptionLeg) error {
	prefix := fmt.Sprintf("legs[%d]", index)
	err := FromValidator(validate.Struct(legInput{
		Type:       string(l.Type),
		Action:     string(l.Action),
		Strike:     l.Strike,
		Premium:    l.Premium,
		Quantity:   l.Quantity,
		Volatility: l.ImpliedVolatility,
	}), prefix)
	if l.Expiration.IsZero() {
		err = errors.Join(err, errors.NewValidationError(prefix+".expiration", l.Expiration, "is required"))
	}
	return err
}

// Legs validates a whole position and reports every bad field.
func Legs(legs []models.OptionLeg) error {
	if len(legs) == 0 {
		return errors.NewValidationError("legs", 0, "at least one leg is required")
	}
	if len(legs) > MaxLegs {
		return errors.NewValidationError("legs", len(legs), fmt.Sprintf("at most %d legs are allowed", MaxLegs))
	}
	var errs []error
	for i, l := range legs {
		errs = append(errs, Leg(i, l))
	}
	return errors.Join(errs...)
}

// Quotes validates option chain quotes that did not come through a CSV file.
func Quotes(quotes []models.Quote) error {
	var errs []error
	for i, q := range quotes {
		prefix := fmt.Sprintf("quotes[%d]", i)
		errs = append(errs, FromValidator(validate.Struct(quoteInput{
			Type:              string(q.Type),
			Strike:            q.Strike,
			Bid:               q.Bid,
			Ask:               q.Ask,
			LastPrice:         q.LastPrice,
			ImpliedVolatility: q.ImpliedVolatility,
		}), prefix))
		if q.Expiration.IsZero() {
			errs = append(errs, errors.NewValidationError(prefix+".expiration", q.Expiration, "is required"))
		}
	}
	return errors.Join(errs...)
}

// Market validates a market snapshot.
func Market(m models.MarketState) error {
	err := FromValidator(validate.Struct(marketInput{
		UnderlyingPrice: m.UnderlyingPrice,
		RiskFreeRate:    m.RiskFreeRate,
	}), "market")
	if m.EvaluationDate.IsZero() {
		err = errors.Join(err, errors.NewValidationError("market.evaluation_date", m.EvaluationDate, "is required"))
	}
	return err
}

// Volatility validates an implied volatility given as a fraction.
func Volatility(field string, sigma float64) error {
	return FromValidator(validate.Var(sigma, "finite,gte=0,lte=10"), field)
}

// Range validates a fraction-of-spot window. Zero selects a default and is
// accepted.
func Range(field string, r float64) error {
	return FromValidator(validate.Var(r, "finite,gte=0,lt=1"), field)
}

// Days validates a day count.
func Days(field string, days int) error {
	return FromValidator(validate.Var(days, "gte=0,lte=3650"), field)
}

// Price validates a strike or underlying price.
func Price(field string, price float64) error {
	return FromValidator(validate.Var(price, "finite,gt=0,lte=10000000"), field)
}

// Rate validates an annual risk-free rate given as a fraction.
func Rate(field string, r float64) error {
	return FromValidator(validate.Var(r, "finite,gte=-0.2,lte=1"), field)
}

// Symbol validates a ticker symbol.
func Symbol(symbol string) error {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	if symbol == "" {
		return errors.NewValidationError("symbol", symbol, "symbol cannot be empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return errors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	return nil
}

// Expression validates the character set of a strike expression before it is
// handed to the evaluator.
func Expression(expr string) error {
	expr = strings.TrimSpace(expr)

	if expr == "" {
		return errors.NewValidationError("strike", expr, "expression cannot be empty")
	}
	if len(expr) > MaxExpression {
		return errors.NewValidationError("strike", expr[:20]+"...", fmt.Sprintf("expression too long (max %d characters)", MaxExpression))
	}
	if !expressionPattern.MatchString(expr) {
		return errors.NewValidationError("strike", expr, "only center, width, numbers and + - * / ( ) are allowed")
	}
	return nil
}

// SanitizeSymbol upper-cases a symbol and drops characters a symbol cannot hold.
func SanitizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	var result strings.Builder
	for _, r := range symbol {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".^&-", r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// FromValidator converts validator failures into ValidationErrors whose field
// names carry prefix. Other errors are returned unchanged.
func FromValidator(err error, prefix string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is "Struct.outer.inner"; drop the struct name.
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		field := prefix
		if path != "" {
			if field != "" {
				field += "."
			}
			field += path
		}
		errs = append(errs, errors.NewValidationError(field, fe.Value(), message(fe)))
	}
	return errors.Join(errs...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "finite":
		return "must be a finite number"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "gtfield":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "failed " + fe.Tag() + " check"
}
