// Package chain loads quoted option chains and binds strategy templates to
// the contracts that are actually listed.
package chain

import (
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"options-lab/internal/errors"
	"options-lab/internal/models"
)

// DateLayout is the expiration format in chain files.
const DateLayout = "2006-01-02"

// quoteRow is one CSV line. Type and expiration are kept as text and parsed
// afterwards so that bad rows can be reported with their line number.
type quoteRow struct {
	Type              string  `csv:"type"`
	Strike            float64 `csv:"strike"`
	Bid               float64 `csv:"bid"`
	Ask               float64 `csv:"ask"`
	LastPrice         float64 `csv:"last_price"`
	ImpliedVolatility float64 `csv:"implied_volatility"`
	Expiration        string  `csv:"expiration"`
}

// ReadCSV decodes quotes with the header
// type,strike,bid,ask,last_price,implied_volatility,expiration.
// source is only used in error messages.
func ReadCSV(r io.Reader, source string) ([]models.Quote, error) {
	var rows []*quoteRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.NewChainError(source, 0, "failed to decode csv", err)
	}

	quotes := make([]models.Quote, 0, len(rows))
	for i, row := range rows {
		line := i + 2 // header is line 1
		typ, err := models.ParseOptionType(row.Type)
		if err != nil {
			return nil, errors.NewChainError(source, line, err.Error(), nil)
		}
		exp, err := time.Parse(DateLayout, strings.TrimSpace(row.Expiration))
		if err != nil {
			return nil, errors.NewChainError(source, line, fmt.Sprintf("bad expiration %q", row.Expiration), nil)
		}
		if row.Strike <= 0 {
			return nil, errors.NewChainError(source, line, fmt.Sprintf("bad strike %v", row.Strike), nil)
		}
		quotes = append(quotes, models.Quote{
			Type:              typ,
			Strike:            row.Strike,
			Bid:               row.Bid,
			Ask:               row.Ask,
			LastPrice:         row.LastPrice,
			ImpliedVolatility: row.ImpliedVolatility,
			Expiration:        exp,
		})
	}
	return quotes, nil
}

// LoadFile reads a CSV chain file for symbol trading at spot.
func LoadFile(path, symbol string, spot float64) (*models.OptionChain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open chain file")
	}
	defer f.Close()

	quotes, err := ReadCSV(f, path)
	if err != nil {
		return nil, err
	}
	return &models.OptionChain{
		Symbol:    strings.ToUpper(symbol),
		SpotPrice: spot,
		Quotes:    quotes,
		AsOf:      time.Now(),
	}, nil
}

// Expirations returns the distinct expiry dates in the chain, earliest first.
func Expirations(c *models.OptionChain) []time.Time {
	var out []time.Time
	for _, q := range c.Quotes {
		d := civil(q.Expiration)
		if !slices.ContainsFunc(out, d.Equal) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// ExpiryOnOrAfter returns the first listed expiry not before target.
func ExpiryOnOrAfter(c *models.OptionChain, target time.Time) (time.Time, bool) {
	t := civil(target)
	for _, e := range Expirations(c) {
		if !e.Before(t) {
			return e, true
		}
	}
	return time.Time{}, false
}

// Strikes returns the distinct strikes listed for typ at expiry, ascending.
func Strikes(c *models.OptionChain, typ models.OptionType, expiry time.Time) []float64 {
	var out []float64
	for _, q := range c.Quotes {
		if q.Type == typ && sameDay(q.Expiration, expiry) && !slices.Contains(out, q.Strike) {
			out = append(out, q.Strike)
		}
	}
	slices.Sort(out)
	return out
}

// StrikeStep is the most common gap between adjacent listed strikes, or 0
// when fewer than two strikes are listed.
func StrikeStep(c *models.OptionChain, expiry time.Time) float64 {
	strikes := Strikes(c, models.Call, expiry)
	if len(strikes) < 2 {
		strikes = Strikes(c, models.Put, expiry)
	}
	counts := map[float64]int{}
	var best float64
	for i := 1; i < len(strikes); i++ {
		gap := math.Round((strikes[i]-strikes[i-1])*100) / 100
		counts[gap]++
		if counts[gap] > counts[best] || (counts[gap] == counts[best] && gap < best) {
			best = gap
		}
	}
	return best
}

// Nearest returns the quote of the given type and expiry whose strike is
// closest to strike. Ties go to the lower strike.
func Nearest(c *models.OptionChain, typ models.OptionType, expiry time.Time, strike float64) (models.Quote, error) {
	var (
		best  models.Quote
		found bool
	)
	for _, q := range c.Quotes {
		if q.Type != typ || !sameDay(q.Expiration, expiry) {
			continue
		}
		if !found {
			best, found = q, true
			continue
		}
		d, bd := math.Abs(q.Strike-strike), math.Abs(best.Strike-strike)
		if d < bd || (d == bd && q.Strike < best.Strike) {
			best = q
		}
	}
	if !found {
		return models.Quote{}, errors.Wrapf(errors.ErrContractNotFound, "%s %.2f %s", typ, strike, expiry.Format(DateLayout))
	}
	return best, nil
}

// ATMStrike is the listed call strike closest to the spot price.
func ATMStrike(c *models.OptionChain, expiry time.Time) (float64, error) {
	q, err := Nearest(c, models.Call, expiry, c.SpotPrice)
	if err != nil {
		q, err = Nearest(c, models.Put, expiry, c.SpotPrice)
	}
	if err != nil {
		return 0, err
	}
	return q.Strike, nil
}

func civil(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return civil(a).Equal(civil(b))
}
