package validation

import (
	"math"
	"strings"
	"testing"
	"time"

	"options-lab/internal/errors"
	"options-lab/internal/models"
)

func goodLeg() models.OptionLeg {
	return models.OptionLeg{
		Type:              models.Call,
		Action:            models.Buy,
		Strike:            100,
		Premium:           5,
		Quantity:          1,
		Expiration:        time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC),
		ImpliedVolatility: 0.25,
	}
}

// fields collects the Field of every ValidationError joined into err.
func fields(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ve, ok := e.(*errors.ValidationError); ok {
			out = append(out, ve.Field)
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

func TestLeg(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.OptionLeg)
		field  string
	}{
		{"valid", func(*models.OptionLeg) {}, ""},
		{"zero strike", func(l *models.OptionLeg) { l.Strike = 0 }, "legs[0].strike"},
		{"NaN strike", func(l *models.OptionLeg) { l.Strike = math.NaN() }, "legs[0].strike"},
		{"infinite premium", func(l *models.OptionLeg) { l.Premium = math.Inf(1) }, "legs[0].premium"},
		{"negative premium", func(l *models.OptionLeg) { l.Premium = -1 }, "legs[0].premium"},
		{"zero quantity", func(l *models.OptionLeg) { l.Quantity = 0 }, "legs[0].quantity"},
		{"huge quantity", func(l *models.OptionLeg) { l.Quantity = 1000000 }, "legs[0].quantity"},
		{"bad type", func(l *models.OptionLeg) { l.Type = "future" }, "legs[0].type"},
		{"bad action", func(l *models.OptionLeg) { l.Action = "hold" }, "legs[0].action"},
		{"absurd volatility", func(l *models.OptionLeg) { l.ImpliedVolatility = 50 }, "legs[0].implied_volatility"},
		{"no expiry", func(l *models.OptionLeg) { l.Expiration = time.Time{} }, "legs[0].expiration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := goodLeg()
			tt.mutate(&l)
			err := Leg(0, l)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Leg() error = %v", err)
				}
				return
			}
			if !errors.Is(err, errors.ErrInputValidation) {
				t.Fatalf("Leg() error = %v, want ErrInputValidation", err)
			}
			if got := fields(err); len(got) != 1 || got[0] != tt.field {
				t.Errorf("fields = %v, want [%s]", got, tt.field)
			}
		})
	}
}

func TestLegs(t *testing.T) {
	if err := Legs(nil); !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("Legs(nil) error = %v", err)
	}
	if err := Legs(make([]models.OptionLeg, MaxLegs+1)); err == nil {
		t.Error("too many legs accepted")
	}

	bad := goodLeg()
	bad.Strike = -5
	bad.Quantity = 0
	err := Legs([]models.OptionLeg{goodLeg(), bad})
	got := fields(err)
	if len(got) != 2 || got[0] != "legs[1].strike" || got[1] != "legs[1].quantity" {
		t.Errorf("fields = %v", got)
	}
	if !strings.Contains(err.Error(), "must be greater than 0") {
		t.Errorf("message = %q", err.Error())
	}

	if err := Legs([]models.OptionLeg{goodLeg(), goodLeg()}); err != nil {
		t.Errorf("Legs(valid) error = %v", err)
	}
}

func TestQuotes(t *testing.T) {
	exp := time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC)
	good := models.Quote{Type: models.Put, Strike: 95, Bid: 1.9, Ask: 2.1, ImpliedVolatility: 0.3, Expiration: exp}
	if err := Quotes([]models.Quote{good}); err != nil {
		t.Errorf("Quotes(valid) error = %v", err)
	}
	if err := Quotes(nil); err != nil {
		t.Errorf("Quotes(nil) error = %v", err)
	}

	negative := good
	negative.Strike = -5
	undated := good
	undated.Type = "future"
	undated.Expiration = time.Time{}
	err := Quotes([]models.Quote{good, negative, undated})
	if !errors.Is(err, errors.ErrInputValidation) {
		t.Fatalf("Quotes() error = %v, want ErrInputValidation", err)
	}
	got := fields(err)
	want := []string{"quotes[1].strike", "quotes[2].type", "quotes[2].expiration"}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fields = %v, want %v", got, want)
			break
		}
	}
}

func TestMarket(t *testing.T) {
	ok := models.MarketState{UnderlyingPrice: 100, RiskFreeRate: 0.05, EvaluationDate: time.Now()}
	if err := Market(ok); err != nil {
		t.Errorf("Market(valid) error = %v", err)
	}

	bad := models.MarketState{UnderlyingPrice: math.NaN(), RiskFreeRate: 3}
	got := fields(Market(bad))
	want := []string{"market.underlying_price", "market.risk_free_rate", "market.evaluation_date"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("fields = %v, want %v", got, want)
	}
}

func TestScalars(t *testing.T) {
	tests := []struct {
		name string
		err  error
		bad  bool
	}{
		{"volatility ok", Volatility("volatility", 0.3), false},
		{"volatility zero", Volatility("volatility", 0), false},
		{"volatility negative", Volatility("volatility", -0.1), true},
		{"volatility NaN", Volatility("volatility", math.NaN()), true},
		{"range default", Range("range", 0), false},
		{"range ok", Range("range", 0.3), false},
		{"range too wide", Range("range", 1), true},
		{"days ok", Days("days", 30), false},
		{"days negative", Days("days", -1), true},
		{"days too far", Days("days", 5000), true},
		{"price ok", Price("strike", 105), false},
		{"rate ok", Rate("rate", 0.05), false},
		{"rate negative ok", Rate("rate", -0.01), false},
		{"rate too high", Rate("rate", 1.5), true},
		{"price zero", Price("strike", 0), true},
		{"price infinite", Price("spot", math.Inf(1)), true},
	}
	for _, tt := range tests {
		if (tt.err != nil) != tt.bad {
			t.Errorf("%s: error = %v, want error %v", tt.name, tt.err, tt.bad)
		}
		if tt.err != nil {
			var ve *errors.ValidationError
			if !errors.As(tt.err, &ve) || ve.Field == "" {
				t.Errorf("%s: error %v has no field", tt.name, tt.err)
			}
		}
	}
}

func TestSymbol(t *testing.T) {
	for _, s := range []string{"SPY", "brk.b", "^SPX", "M&M", "NIFTY-50"} {
		if err := Symbol(s); err != nil {
			t.Errorf("Symbol(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"", "   ", "SPY; rm -rf", strings.Repeat("A", 21)} {
		if err := Symbol(s); err == nil {
			t.Errorf("Symbol(%q) accepted", s)
		}
	}
	if got := SanitizeSymbol(" spy$ "); got != "SPY" {
		t.Errorf("SanitizeSymbol() = %q", got)
	}
}

func TestExpression(t *testing.T) {
	for _, e := range []string{"center + 2*width", "center", "(center - width) / 1", "center-0.5*width"} {
		if err := Expression(e); err != nil {
			t.Errorf("Expression(%q) error = %v", e, err)
		}
	}
	for _, e := range []string{"", "center; drop", "center + `x`", strings.Repeat("1+", 60)} {
		if err := Expression(e); !errors.Is(err, errors.ErrInputValidation) {
			t.Errorf("Expression(%q) error = %v", e, err)
		}
	}
}

type request struct {
	Spot float64 `json:"spot" validate:"finite,gt=0"`
	Skip float64 `json:"-" validate:"gte=0"`
}

func TestFromValidator_FieldNames(t *testing.T) {
	v := New()
	err := FromValidator(v.Struct(request{Spot: math.Inf(1), Skip: -1}), "")
	got := fields(err)
	if len(got) != 2 || got[0] != "spot" || got[1] != "Skip" {
		t.Errorf("fields = %v", got)
	}
	if err := FromValidator(nil, "x"); err != nil {
		t.Errorf("FromValidator(nil) = %v", err)
	}
	plain := errors.ErrConfigInvalid
	if err := FromValidator(plain, "x"); err != plain {
		t.Errorf("non-validator error changed: %v", err)
	}
}
