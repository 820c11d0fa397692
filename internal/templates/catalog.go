// Package templates holds the catalog of named multi-leg strategies.
//
// A template is data: an ordered list of leg shapes whose strikes are offsets
// from a center strike in units of a strike width. Turning shapes into real
// legs (finding quoted strikes, premiums and expiries) is done by the caller,
// see Preview and the chain package.
package templates

import (
	"fmt"
	"slices"

	"options-lab/internal/errors"
	"options-lab/internal/models"
)

// ID identifies a template.
type ID string

// Built-in template IDs.
const (
	LongCall       ID = "long-call"
	LongPut        ID = "long-put"
	CoveredCall    ID = "covered-call"
	BullCallSpread ID = "bull-call-spread"
	BearCallSpread ID = "bear-call-spread"
	BullPutSpread  ID = "bull-put-spread"
	BearPutSpread  ID = "bear-put-spread"
	Straddle       ID = "straddle"
	Strangle       ID = "strangle"
	IronCondor     ID = "iron-condor"
	IronButterfly  ID = "iron-butterfly"
	CallButterfly  ID = "call-butterfly"
	PutButterfly   ID = "put-butterfly"
	CalendarSpread ID = "calendar-spread"
	DiagonalSpread ID = "diagonal-spread"
)

// Outlook is the market view a template expresses.
type Outlook string

// Outlooks.
const (
	Bullish  Outlook = "bullish"
	Bearish  Outlook = "bearish"
	Neutral  Outlook = "neutral"
	Volatile Outlook = "volatile"
)

// Expiry selects which of the two caller-supplied expiries a leg uses.
type Expiry int

const (
	Near Expiry = iota
	Far
)

func (e Expiry) String() string {
	if e == Far {
		return "far"
	}
	return "near"
}

// MarshalText implements encoding.TextMarshaler.
func (e Expiry) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Expiry) UnmarshalText(b []byte) error {
	v, err := ParseExpiry(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// ParseExpiry parses "near" or "far"; an empty string means near.
func ParseExpiry(s string) (Expiry, error) {
	switch s {
	case "", "near":
		return Near, nil
	case "far":
		return Far, nil
	}
	return Near, fmt.Errorf("unknown expiry %q", s)
}

// LegShape is a leg without a concrete strike or price.
type LegShape struct {
	Type         models.OptionType `json:"type"`
	Action       models.Action     `json:"action"`
	StrikeOffset float64           `json:"strike_offset"` // in strike widths from the center
	Quantity     int               `json:"quantity"`
	Expiry       Expiry            `json:"expiry"`
}

// ResolvedShape is a LegShape with its strike bound.
type ResolvedShape struct {
	LegShape
	Strike float64 `json:"strike"`
}

// Template is a named strategy shape.
type Template struct {
	ID            ID         `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Outlook       Outlook    `json:"outlook"`
	RequiresStock bool       `json:"requires_stock,omitempty"`
	Legs          []LegShape `json:"legs"`
	Custom        bool       `json:"custom,omitempty"`
}

// Resolve binds every shape's offset to a strike: center + offset*width.
func (t Template) Resolve(center, width float64) []ResolvedShape {
	out := make([]ResolvedShape, len(t.Legs))
	for i, l := range t.Legs {
		out[i] = ResolvedShape{LegShape: l, Strike: center + l.StrikeOffset*width}
	}
	return out
}

// CheckStrikes returns a ValidationError when centering t at center with the
// given width puts any leg at a strike that is not positive.
func (t Template) CheckStrikes(center, width float64) error {
	for i, s := range t.Resolve(center, width) {
		if !(s.Strike > 0) {
			return errors.NewValidationError("center", center,
				fmt.Sprintf("%s leg %d resolves to strike %g; use a narrower width or a higher center", t.ID, i+1, s.Strike))
		}
	}
	return nil
}

// RequiresTwoExpiries reports whether any leg uses the far expiry.
func (t Template) RequiresTwoExpiries() bool {
	return slices.ContainsFunc(t.Legs, func(l LegShape) bool { return l.Expiry == Far })
}

// Validate checks the shape list is usable.
func (t Template) Validate() error {
	if t.ID == "" {
		return errors.NewTemplateError("", -1, errors.ErrInvalidLeg)
	}
	if len(t.Legs) == 0 {
		return errors.NewTemplateError(string(t.ID), -1, fmt.Errorf("%w: no legs", errors.ErrInvalidLeg))
	}
	for i, l := range t.Legs {
		if l.Type != models.Call && l.Type != models.Put {
			return errors.NewTemplateError(string(t.ID), i, fmt.Errorf("%w: option type %q", errors.ErrInvalidLeg, l.Type))
		}
		if l.Action != models.Buy && l.Action != models.Sell {
			return errors.NewTemplateError(string(t.ID), i, fmt.Errorf("%w: action %q", errors.ErrInvalidLeg, l.Action))
		}
		if l.Quantity < 1 {
			return errors.NewTemplateError(string(t.ID), i, fmt.Errorf("%w: quantity %d", errors.ErrInvalidLeg, l.Quantity))
		}
	}
	return nil
}

func shape(t models.OptionType, a models.Action, offset float64) LegShape {
	return LegShape{Type: t, Action: a, StrikeOffset: offset, Quantity: 1, Expiry: Near}
}

func (l LegShape) times(q int) LegShape {
	l.Quantity = q
	return l
}

func (l LegShape) far() LegShape {
	l.Expiry = Far
	return l
}

var (
	buyCall  = func(o float64) LegShape { return shape(models.Call, models.Buy, o) }
	sellCall = func(o float64) LegShape { return shape(models.Call, models.Sell, o) }
	buyPut   = func(o float64) LegShape { return shape(models.Put, models.Buy, o) }
	sellPut  = func(o float64) LegShape { return shape(models.Put, models.Sell, o) }
)

var builtins = []Template{
	{
		ID: LongCall, Name: "Long Call", Outlook: Bullish,
		Description: "Buy a call. Limited risk, unlimited upside.",
		Legs:        []LegShape{buyCall(0)},
	},
	{
		ID: LongPut, Name: "Long Put", Outlook: Bearish,
		Description: "Buy a put. Limited risk, profits as the stock falls.",
		Legs:        []LegShape{buyPut(0)},
	},
	{
		ID: CoveredCall, Name: "Covered Call", Outlook: Neutral, RequiresStock: true,
		Description: "Own 100 shares and sell an out-of-the-money call against them for income.",
		Legs:        []LegShape{sellCall(1)},
	},
	{
		ID: BullCallSpread, Name: "Bull Call Spread", Outlook: Bullish,
		Description: "Buy a call and sell a higher-strike call. Debit, capped risk and reward.",
		Legs:        []LegShape{buyCall(0), sellCall(1)},
	},
	{
		ID: BearCallSpread, Name: "Bear Call Spread", Outlook: Bearish,
		Description: "Sell a call and buy a higher-strike call. Credit, capped risk and reward.",
		Legs:        []LegShape{sellCall(0), buyCall(1)},
	},
	{
		ID: BullPutSpread, Name: "Bull Put Spread", Outlook: Bullish,
		Description: "Sell a put and buy a lower-strike put. Credit, capped risk and reward.",
		Legs:        []LegShape{sellPut(0), buyPut(-1)},
	},
	{
		ID: BearPutSpread, Name: "Bear Put Spread", Outlook: Bearish,
		Description: "Buy a put and sell a lower-strike put. Debit, capped risk and reward.",
		Legs:        []LegShape{buyPut(0), sellPut(-1)},
	},
	{
		ID: Straddle, Name: "Long Straddle", Outlook: Volatile,
		Description: "Buy a call and a put at the same strike. Profits from a large move either way.",
		Legs:        []LegShape{buyCall(0), buyPut(0)},
	},
	{
		ID: Strangle, Name: "Long Strangle", Outlook: Volatile,
		Description: "Buy an out-of-the-money put and call. Cheaper than a straddle, needs a bigger move.",
		Legs:        []LegShape{buyPut(-1), buyCall(1)},
	},
	{
		ID: IronCondor, Name: "Iron Condor", Outlook: Neutral,
		Description: "Sell a put spread and a call spread around the price. Credit, profits in a range.",
		Legs:        []LegShape{buyPut(-2), sellPut(-1), sellCall(1), buyCall(2)},
	},
	{
		ID: IronButterfly, Name: "Iron Butterfly", Outlook: Neutral,
		Description: "Sell an at-the-money straddle and buy wings. Credit, profits if the stock pins the strike.",
		Legs:        []LegShape{buyPut(-1), sellPut(0), sellCall(0), buyCall(1)},
	},
	{
		ID: CallButterfly, Name: "Call Butterfly", Outlook: Neutral,
		Description: "Buy one lower call, sell two center calls, buy one upper call.",
		Legs:        []LegShape{buyCall(-1), sellCall(0).times(2), buyCall(1)},
	},
	{
		ID: PutButterfly, Name: "Put Butterfly", Outlook: Neutral,
		Description: "Buy one lower put, sell two center puts, buy one upper put.",
		Legs:        []LegShape{buyPut(-1), sellPut(0).times(2), buyPut(1)},
	},
	{
		ID: CalendarSpread, Name: "Calendar Spread", Outlook: Neutral,
		Description: "Sell a near-dated call and buy a far-dated call at the same strike.",
		Legs:        []LegShape{sellCall(0), buyCall(0).far()},
	},
	{
		ID: DiagonalSpread, Name: "Diagonal Spread", Outlook: Bullish,
		Description: "Sell a near-dated out-of-the-money call and buy a far-dated call at the center.",
		Legs:        []LegShape{sellCall(1), buyCall(0).far()},
	},
}

// Builtins returns a copy of the built-in templates in catalog order.
func Builtins() []Template {
	out := make([]Template, len(builtins))
	for i, t := range builtins {
		t.Legs = slices.Clone(t.Legs)
		out[i] = t
	}
	return out
}

// Catalog is an ordered, read-only set of templates.
type Catalog struct {
	order []ID
	byID  map[ID]Template
}

// NewCatalog returns the built-ins followed by extra templates. An extra
// template may not reuse an existing ID.
func NewCatalog(extra ...Template) (*Catalog, error) {
	c := &Catalog{byID: make(map[ID]Template, len(builtins)+len(extra))}
	for _, t := range append(Builtins(), extra...) {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, errors.NewTemplateError(string(t.ID), -1, errors.ErrDuplicateTemplate)
		}
		t.Legs = slices.Clone(t.Legs)
		c.order = append(c.order, t.ID)
		c.byID[t.ID] = t
	}
	return c, nil
}

// Get returns the template with the given ID.
func (c *Catalog) Get(id ID) (Template, error) {
	t, ok := c.byID[id]
	if !ok {
		return Template{}, errors.Wrapf(errors.ErrUnknownStrategy, "%q", id)
	}
	t.Legs = slices.Clone(t.Legs)
	return t, nil
}

// All returns every template in catalog order.
func (c *Catalog) All() []Template {
	out := make([]Template, 0, len(c.order))
	for _, id := range c.order {
		t := c.byID[id]
		t.Legs = slices.Clone(t.Legs)
		out = append(out, t)
	}
	return out
}

// Len is the number of templates.
func (c *Catalog) Len() int {
	return len(c.order)
}
