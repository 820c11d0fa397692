package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ContractMultiplier is the number of shares one option contract represents.
const ContractMultiplier = 100

// OptionType is the kind of option contract.
type OptionType string

// Option types.
const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ParseOptionType parses "call"/"put" (also "c", "p", "ce", "pe"), case-insensitive.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "ce":
		return Call, nil
	case "put", "p", "pe":
		return Put, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// IsCall reports whether the option is a call.
func (t OptionType) IsCall() bool {
	return t == Call
}

// Action is the side of a leg.
type Action string

// Leg actions.
const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// ParseAction parses "buy"/"sell" (also "long"/"short"), case-insensitive.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long", "b":
		return Buy, nil
	case "sell", "short", "s":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Sign returns +1 for a bought leg and -1 for a sold leg.
func (a Action) Sign() float64 {
	if a == Sell {
		return -1
	}
	return 1
}

// OptionLeg is one option position inside a strategy. Legs are values;
// use the With* helpers to derive a changed copy.
type OptionLeg struct {
	Type              OptionType `json:"type"`
	Action            Action     `json:"action"`
	Strike            float64    `json:"strike"`
	Premium           float64    `json:"premium"` // per share
	Quantity          int        `json:"quantity"`
	Expiration        time.Time  `json:"expiration"`
	ImpliedVolatility float64    `json:"implied_volatility"` // 0.30 = 30%
}

// WithPremium returns a copy of the leg with a different premium.
func (l OptionLeg) WithPremium(premium float64) OptionLeg {
	l.Premium = premium
	return l
}

// WithStrike returns a copy of the leg with a different strike.
func (l OptionLeg) WithStrike(strike float64) OptionLeg {
	l.Strike = strike
	return l
}

// WithImpliedVolatility returns a copy of the leg with a different IV.
func (l OptionLeg) WithImpliedVolatility(iv float64) OptionLeg {
	l.ImpliedVolatility = iv
	return l
}

// String renders the leg as "BUY 1 100.00 CALL @ 5.00 2024-01-19".
func (l OptionLeg) String() string {
	return fmt.Sprintf("%s %d %.2f %s @ %.2f %s",
		strings.ToUpper(string(l.Action)), l.Quantity, l.Strike,
		strings.ToUpper(string(l.Type)), l.Premium, l.Expiration.Format("2006-01-02"))
}

// MarketState is the market snapshot an evaluation runs against.
type MarketState struct {
	UnderlyingPrice float64   `json:"underlying_price"`
	RiskFreeRate    float64   `json:"risk_free_rate"`
	EvaluationDate  time.Time `json:"evaluation_date"`
}

// Greeks holds an option's fair value and sensitivities.
// Theta is per calendar day, Vega per 1% IV, Rho per 1% rate.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
	Price float64 `json:"price"`
}

// Add returns g + o*scale.
func (g Greeks) Add(o Greeks, scale float64) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta*scale,
		Gamma: g.Gamma + o.Gamma*scale,
		Theta: g.Theta + o.Theta*scale,
		Vega:  g.Vega + o.Vega*scale,
		Rho:   g.Rho + o.Rho*scale,
		Price: g.Price + o.Price*scale,
	}
}

// PayoffPoint is one sample of a P&L curve.
type PayoffPoint struct {
	StockPrice float64 `json:"stock_price"`
	PnL        float64 `json:"pnl"`
}

// StrategyMetrics summarizes a strategy's at-expiration payoff.
// MaxProfit is +Inf and MaxLoss is -Inf when that side is unbounded.
type StrategyMetrics struct {
	MaxProfit      float64   `json:"max_profit"`
	MaxLoss        float64   `json:"max_loss"`
	MaxProfitPrice float64   `json:"max_profit_price"`
	MaxLossPrice   float64   `json:"max_loss_price"`
	Breakevens     []float64 `json:"breakevens"`
	NetPremium     float64   `json:"net_premium"`
	IsCredit       bool      `json:"is_credit"`
}

// UnlimitedProfit reports whether the upside is unbounded.
func (m StrategyMetrics) UnlimitedProfit() bool {
	return math.IsInf(m.MaxProfit, 1)
}

// UnlimitedLoss reports whether the downside is unbounded.
func (m StrategyMetrics) UnlimitedLoss() bool {
	return math.IsInf(m.MaxLoss, -1)
}

// Amount is a currency value whose JSON form spells out infinities,
// since encoding/json rejects them.
type Amount float64

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	f := float64(a)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"unlimited"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-unlimited"`), nil
	case math.IsNaN(f):
		return []byte(`null`), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"unlimited"`:
		*a = Amount(math.Inf(1))
		return nil
	case `"-unlimited"`:
		*a = Amount(math.Inf(-1))
		return nil
	case `null`:
		*a = Amount(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

type metricsJSON struct {
	MaxProfit      Amount    `json:"max_profit"`
	MaxLoss        Amount    `json:"max_loss"`
	MaxProfitPrice float64   `json:"max_profit_price"`
	MaxLossPrice   float64   `json:"max_loss_price"`
	Breakevens     []float64 `json:"breakevens"`
	NetPremium     float64   `json:"net_premium"`
	IsCredit       bool      `json:"is_credit"`
}

// MarshalJSON implements json.Marshaler.
func (m StrategyMetrics) MarshalJSON() ([]byte, error) {
	breakevens := m.Breakevens
	if breakevens == nil {
		breakevens = []float64{}
	}
	return json.Marshal(metricsJSON{
		MaxProfit:      Amount(m.MaxProfit),
		MaxLoss:        Amount(m.MaxLoss),
		MaxProfitPrice: m.MaxProfitPrice,
		MaxLossPrice:   m.MaxLossPrice,
		Breakevens:     breakevens,
		NetPremium:     m.NetPremium,
		IsCredit:       m.IsCredit,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *StrategyMetrics) UnmarshalJSON(b []byte) error {
	var raw metricsJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = StrategyMetrics{
		MaxProfit:      float64(raw.MaxProfit),
		MaxLoss:        float64(raw.MaxLoss),
		MaxProfitPrice: raw.MaxProfitPrice,
		MaxLossPrice:   raw.MaxLossPrice,
		Breakevens:     raw.Breakevens,
		NetPremium:     raw.NetPremium,
		IsCredit:       raw.IsCredit,
	}
	return nil
}

// OptionChain is a set of quoted contracts for one underlying.
type OptionChain struct {
	Symbol    string    `json:"symbol"`
	SpotPrice float64   `json:"spot_price"`
	Quotes    []Quote   `json:"quotes"`
	AsOf      time.Time `json:"as_of"`
}

// Quote is a single quoted option contract as delivered by a data feed.
type Quote struct {
	Type              OptionType `json:"type"`
	Strike            float64    `json:"strike"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	LastPrice         float64    `json:"last_price"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Expiration        time.Time  `json:"expiration"`
}

// MidPrice is (bid+ask)/2 when both sides are quoted, otherwise the last trade.
func (q Quote) MidPrice() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.LastPrice
}
