// Package scan evaluates every strategy template against one market view and
// ranks the results.
package scan

import (
	"cmp"
	"context"
	"math"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog"
	conciter "github.com/sourcegraph/conc/iter"

	"options-lab/internal/chain"
	"options-lab/internal/logging"
	"options-lab/internal/models"
	"options-lab/internal/strategy"
	"options-lab/internal/templates"
	"options-lab/internal/validation"
)

// Request describes the market a scan runs against.
type Request struct {
	Market       models.MarketState
	Center       float64 // zero means spot rounded to Width
	Width        float64
	Volatility   float64 // flat IV for theoretical pricing when Chain is nil
	DaysToExpiry int
	FarDays      int // far expiry for calendar/diagonal; zero means DaysToExpiry+30
	SearchRange  float64
	Outlook      templates.Outlook // empty means every outlook
	Chain        *models.OptionChain
}

// Result is one template's evaluation.
type Result struct {
	Template   templates.Template     `json:"template"`
	Legs       []models.OptionLeg     `json:"legs,omitempty"`
	Metrics    models.StrategyMetrics `json:"metrics"`
	Greeks     models.Greeks          `json:"greeks"`
	RewardRisk float64                `json:"reward_risk"`
	PoP        float64                `json:"probability_of_profit"`
	Err        string                 `json:"error,omitempty"`

	score float64
}

// Scanner fans template evaluation out over a bounded set of goroutines.
type Scanner struct {
	catalog *templates.Catalog
	workers int
	logger  zerolog.Logger
}

// New creates a Scanner. workers <= 0 uses GOMAXPROCS.
func New(catalog *templates.Catalog, workers int, logger zerolog.Logger) *Scanner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scanner{catalog: catalog, workers: workers, logger: logger}
}

// Run evaluates the catalog and returns results best first. Templates that
// cannot be built into valid legs are kept at the end with Err set. Run stops
// early and returns ctx.Err() if the context is cancelled.
func (s *Scanner) Run(ctx context.Context, req Request) ([]Result, error) {
	start := time.Now()

	var candidates []templates.Template
	for _, t := range s.catalog.All() {
		if req.Outlook == "" || t.Outlook == req.Outlook {
			candidates = append(candidates, t)
		}
	}

	mapper := conciter.Mapper[templates.Template, Result]{MaxGoroutines: s.workers}
	results := mapper.Map(candidates, func(t *templates.Template) Result {
		if ctx.Err() != nil {
			return Result{Template: *t, Err: ctx.Err().Error(), score: math.Inf(-1)}
		}
		return s.evaluate(*t, req)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.score, a.score)
	})

	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
		}
	}
	logging.LogScan(s.logger, len(results), failed, time.Since(start))
	return results, nil
}

func (s *Scanner) evaluate(t templates.Template, req Request) Result {
	log := logging.WithTemplate(s.logger, string(t.ID))
	res := Result{Template: t}

	near := req.Market.EvaluationDate.AddDate(0, 0, req.DaysToExpiry)
	farDays := req.FarDays
	if farDays <= req.DaysToExpiry {
		farDays = req.DaysToExpiry + 30
	}
	far := req.Market.EvaluationDate.AddDate(0, 0, farDays)

	var legs []models.OptionLeg
	if req.Chain != nil {
		nearExp, ok := chain.ExpiryOnOrAfter(req.Chain, near)
		farExp, _ := chain.ExpiryOnOrAfter(req.Chain, far)
		if !ok {
			nearExp = near
		}
		var err error
		legs, err = chain.Bind(t, req.Chain, chain.BindParams{
			Center: req.Center, Width: req.Width, Near: nearExp, Far: farExp,
		})
		if err != nil {
			return skip(res, log, err)
		}
	} else {
		center := req.Center
		if center == 0 {
			center = roundTo(req.Market.UnderlyingPrice, req.Width)
		}
		if err := t.CheckStrikes(center, req.Width); err != nil {
			return skip(res, log, err)
		}
		legs = templates.Preview(t, req.Market, templates.PreviewParams{
			Center: center, Width: req.Width, Volatility: req.Volatility, Near: near, Far: far,
		})
	}
	if err := validation.Legs(legs); err != nil {
		return skip(res, log, err)
	}

	start := time.Now()
	a := strategy.Analyze(legs, req.Market, strategy.Options{SearchRange: req.SearchRange, DaysFromNow: strategy.AtExpiration})
	logging.LogEvaluation(log, "scan", len(legs), req.Market.UnderlyingPrice, time.Since(start))

	res.Legs = legs
	res.Metrics = a.Metrics
	res.Greeks = a.Greeks
	res.RewardRisk = a.RewardRisk
	res.PoP = a.PoP
	res.score = Score(a.Metrics)
	return res
}

// skip records why t could not be evaluated; it ranks below every evaluated template.
func skip(res Result, log zerolog.Logger, err error) Result {
	log.Debug().Err(err).Msg("Template skipped")
	res.Err = err.Error()
	res.score = math.Inf(-1)
	return res
}

// Score orders results: unbounded loss ranks below every defined-risk
// position, unbounded profit with a bounded loss ranks first, everything else
// by reward over risk. Reward over risk never drops below -1.
func Score(m models.StrategyMetrics) float64 {
	switch {
	case m.UnlimitedLoss():
		return -math.MaxFloat64
	case m.UnlimitedProfit():
		return math.MaxFloat64
	case m.MaxLoss >= 0:
		return math.MaxFloat64
	}
	return strategy.RewardRisk(m)
}

func roundTo(x, step float64) float64 {
	if step <= 0 {
		return x
	}
	return math.Round(x/step) * step
}
