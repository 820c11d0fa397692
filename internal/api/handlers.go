package api

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"options-lab/internal/chain"
	"options-lab/internal/config"
	"options-lab/internal/errors"
	"options-lab/internal/logging"
	"options-lab/internal/models"
	"options-lab/internal/payoff"
	"options-lab/internal/pricing"
	"options-lab/internal/scan"
	"options-lab/internal/strategy"
	"options-lab/internal/templates"
	"options-lab/internal/validation"
)

// Handler serves the analyzer endpoints.
type Handler struct {
	catalog *templates.Catalog
	scanner *scan.Scanner
	cfg     *config.Config
	now     func() time.Time
}

// NewHandler creates a Handler. now supplies the evaluation date when a
// request omits one; nil means time.Now.
func NewHandler(catalog *templates.Catalog, scanner *scan.Scanner, cfg *config.Config, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{catalog: catalog, scanner: scanner, cfg: cfg, now: now}
}

type optionRequest struct {
	Type       string   `json:"type" binding:"required"`
	Spot       float64  `json:"spot" binding:"finite,gt=0"`
	Strike     float64  `json:"strike" binding:"finite,gt=0"`
	Days       int      `json:"days" binding:"gte=0,lte=3650"`
	Volatility float64  `json:"volatility" binding:"finite,gte=0,lte=10"`
	Rate       *float64 `json:"rate" binding:"omitempty,finite,gte=-0.2,lte=1"`
}

type priceResponse struct {
	models.Greeks
	Intrinsic float64 `json:"intrinsic"`
	TimeValue float64 `json:"time_value"`
}

type payoffRequest struct {
	Type    string  `json:"type" binding:"required"`
	Strike  float64 `json:"strike" binding:"finite,gt=0"`
	Premium float64 `json:"premium" binding:"finite,gte=0"`
	Spot    float64 `json:"spot" binding:"finite,gt=0"`
	Range   float64 `json:"range" binding:"finite,gte=0,lt=1"`
}

type payoffResponse struct {
	BreakEven float64              `json:"breakeven"`
	Points    []models.PayoffPoint `json:"points"`
}

type gridRequest struct {
	Type       string   `json:"type" binding:"required"`
	Spot       float64  `json:"spot" binding:"finite,gt=0"`
	Strike     float64  `json:"strike" binding:"finite,gt=0"`
	Premium    float64  `json:"premium" binding:"finite,gte=0"`
	Days       int      `json:"days" binding:"gte=0,lte=3650"`
	Volatility float64  `json:"volatility" binding:"finite,gte=0,lte=10"`
	Rate       *float64 `json:"rate" binding:"omitempty,finite,gte=-0.2,lte=1"`
}

type legRequest struct {
	Type       string  `json:"type" binding:"required"`
	Action     string  `json:"action" binding:"required"`
	Strike     float64 `json:"strike"`
	Premium    float64 `json:"premium"`
	Quantity   int     `json:"quantity"` // zero means 1
	Expiration string  `json:"expiration" binding:"required"`
	Volatility float64 `json:"implied_volatility"`
}

type marketRequest struct {
	UnderlyingPrice float64  `json:"underlying_price"`
	RiskFreeRate    *float64 `json:"risk_free_rate"`
	EvaluationDate  string   `json:"evaluation_date"`
}

type analyzeRequest struct {
	Legs        []legRequest  `json:"legs" binding:"required,dive"`
	Market      marketRequest `json:"market"`
	DaysFromNow *int          `json:"days_from_now" binding:"omitempty,gte=0,lte=3650"`
	SearchRange float64       `json:"search_range" binding:"finite,gte=0,lt=1"`
	CurveRange  float64       `json:"curve_range" binding:"finite,gte=0,lt=1"`
}

type templateRequest struct {
	Market     marketRequest `json:"market"`
	Center     float64       `json:"center" binding:"finite,gte=0"`
	Width      float64       `json:"width" binding:"finite,gte=0"`
	Volatility float64       `json:"volatility" binding:"finite,gte=0,lte=10"`
	Days       int           `json:"days" binding:"gte=0,lte=3650"`
	FarDays    int           `json:"far_days" binding:"gte=0,lte=3650"`
	Quantity   int           `json:"quantity" binding:"gte=0,lte=10000"`
}

type scanRequest struct {
	Market     marketRequest  `json:"market"`
	Center     float64        `json:"center" binding:"finite,gte=0"`
	Width      float64        `json:"width" binding:"finite,gte=0"`
	Volatility float64        `json:"volatility" binding:"finite,gte=0,lte=10"`
	Days       int            `json:"days" binding:"gte=0,lte=3650"`
	FarDays    int            `json:"far_days" binding:"gte=0,lte=3650"`
	Outlook    string         `json:"outlook" binding:"omitempty,oneof=bullish bearish neutral volatile"`
	Quotes     []models.Quote `json:"quotes"` // optional chain; without it legs are priced theoretically
}

type previewResponse struct {
	Template templates.Template `json:"template"`
	strategy.Analysis
}

// Health reports liveness without the envelope.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "templates": h.catalog.Len()})
}

// OptionPrice prices one option and returns its Greeks.
func (h *Handler) OptionPrice(c *gin.Context) {
	var req optionRequest
	if !bind(c, &req) {
		return
	}
	typ, err := optionType("type", req.Type)
	if err != nil {
		Error(c, err)
		return
	}

	years := float64(req.Days) / pricing.DaysPerYear
	g := pricing.Calculate(req.Spot, req.Strike, years, h.rate(req.Rate), req.Volatility, typ)
	intrinsic := pricing.Intrinsic(req.Spot, req.Strike, typ)
	Success(c, priceResponse{Greeks: g, Intrinsic: intrinsic, TimeValue: g.Price - intrinsic})
}

// OptionPayoff returns the at-expiration P&L curve of one long option.
func (h *Handler) OptionPayoff(c *gin.Context) {
	var req payoffRequest
	if !bind(c, &req) {
		return
	}
	typ, err := optionType("type", req.Type)
	if err != nil {
		Error(c, err)
		return
	}

	rng := req.Range
	if rng == 0 {
		rng = h.cfg.Analysis.PayoffRange
	}
	Success(c, payoffResponse{
		BreakEven: payoff.BreakEven(req.Strike, req.Premium, typ),
		Points:    slices.Collect(payoff.PayoffCurve(req.Strike, req.Premium, typ, req.Spot, rng)),
	})
}

// OptionGrid returns the price-by-day P&L grid of one long option.
func (h *Handler) OptionGrid(c *gin.Context) {
	var req gridRequest
	if !bind(c, &req) {
		return
	}
	typ, err := optionType("type", req.Type)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, payoff.TimeValueGrid(req.Strike, req.Premium, typ, req.Spot, req.Days, req.Volatility, h.rate(req.Rate)))
}

// AnalyzeStrategy evaluates an arbitrary set of legs.
func (h *Handler) AnalyzeStrategy(c *gin.Context) {
	var req analyzeRequest
	if !bind(c, &req) {
		return
	}

	legs, err := h.legs(req.Legs)
	if err != nil {
		Error(c, err)
		return
	}
	market, err := h.market(req.Market)
	if err != nil {
		Error(c, err)
		return
	}

	opts := strategy.Options{SearchRange: req.SearchRange, CurveRange: req.CurveRange, DaysFromNow: strategy.AtExpiration}
	if opts.SearchRange == 0 {
		opts.SearchRange = h.cfg.Analysis.SearchRange
	}
	if opts.CurveRange == 0 {
		opts.CurveRange = h.cfg.Analysis.PayoffRange
	}
	if req.DaysFromNow != nil {
		opts.DaysFromNow = *req.DaysFromNow
	}

	start := time.Now()
	a := strategy.Analyze(legs, market, opts)
	logging.LogEvaluation(logging.FromContext(c.Request.Context()), "analyze", len(legs), market.UnderlyingPrice, time.Since(start))
	Success(c, a)
}

// ListStrategies lists the catalog, optionally filtered by ?outlook=.
func (h *Handler) ListStrategies(c *gin.Context) {
	outlook := templates.Outlook(strings.ToLower(c.Query("outlook")))
	out := make([]templates.Template, 0, h.catalog.Len())
	for _, t := range h.catalog.All() {
		if outlook == "" || t.Outlook == outlook {
			out = append(out, t)
		}
	}
	Success(c, out)
}

// GetStrategy returns one template.
func (h *Handler) GetStrategy(c *gin.Context) {
	t, err := h.catalog.Get(templates.ID(c.Param("id")))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, t)
}

// PreviewStrategy prices a template at a flat volatility and analyzes it.
func (h *Handler) PreviewStrategy(c *gin.Context) {
	t, err := h.catalog.Get(templates.ID(c.Param("id")))
	if err != nil {
		Error(c, err)
		return
	}
	var req templateRequest
	if !bind(c, &req) {
		return
	}
	market, err := h.market(req.Market)
	if err != nil {
		Error(c, err)
		return
	}

	width := orDefault(req.Width, h.cfg.Analysis.StrikeWidth)
	center := orDefault(req.Center, roundToStep(market.UnderlyingPrice, width))
	if err := t.CheckStrikes(center, width); err != nil {
		Error(c, err)
		return
	}
	days := orDefault(req.Days, h.cfg.Analysis.DaysToExpiry)
	legs := templates.Preview(t, market, templates.PreviewParams{
		Center:     center,
		Width:      width,
		Volatility: orDefault(req.Volatility, h.cfg.Pricing.DefaultVolatility),
		Near:       market.EvaluationDate.AddDate(0, 0, days),
		Far:        market.EvaluationDate.AddDate(0, 0, max(orDefault(req.FarDays, h.cfg.Analysis.FarDays), days+1)),
		Quantity:   req.Quantity,
	})

	a := strategy.Analyze(legs, market, strategy.Options{
		SearchRange: h.cfg.Analysis.SearchRange,
		CurveRange:  h.cfg.Analysis.PayoffRange,
		DaysFromNow: strategy.AtExpiration,
	})
	Success(c, previewResponse{Template: t, Analysis: a})
}

// ScanStrategies evaluates every template and returns them ranked.
func (h *Handler) ScanStrategies(c *gin.Context) {
	var req scanRequest
	if !bind(c, &req) {
		return
	}
	market, err := h.market(req.Market)
	if err != nil {
		Error(c, err)
		return
	}

	sr := scan.Request{
		Market:       market,
		Center:       req.Center,
		Width:        orDefault(req.Width, h.cfg.Analysis.StrikeWidth),
		Volatility:   orDefault(req.Volatility, h.cfg.Pricing.DefaultVolatility),
		DaysToExpiry: orDefault(req.Days, h.cfg.Analysis.DaysToExpiry),
		FarDays:      orDefault(req.FarDays, h.cfg.Analysis.FarDays),
		SearchRange:  h.cfg.Analysis.SearchRange,
		Outlook:      templates.Outlook(req.Outlook),
	}
	if len(req.Quotes) > 0 {
		if err := validation.Quotes(req.Quotes); err != nil {
			Error(c, err)
			return
		}
		sr.Chain = &models.OptionChain{SpotPrice: market.UnderlyingPrice, Quotes: req.Quotes, AsOf: market.EvaluationDate}
		if req.Width == 0 {
			near, _ := chain.ExpiryOnOrAfter(sr.Chain, market.EvaluationDate.AddDate(0, 0, sr.DaysToExpiry))
			sr.Width = chain.StrikeStep(sr.Chain, near)
		}
	}

	results, err := h.scanner.Run(c.Request.Context(), sr)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, results)
}

// bind decodes the JSON body and reports binding failures as validation
// errors. It returns false once a response has been written.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		converted := validation.FromValidator(err, "")
		if !errors.Is(converted, errors.ErrInputValidation) {
			converted = errors.NewValidationError("body", nil, err.Error())
		}
		Error(c, converted)
		return false
	}
	return true
}

func (h *Handler) legs(in []legRequest) ([]models.OptionLeg, error) {
	legs := make([]models.OptionLeg, 0, len(in))
	var errs []error
	for i, l := range in {
		field := fmt.Sprintf("legs[%d]", i)
		typ, err := optionType(field+".type", l.Type)
		errs = append(errs, err)
		action, err := models.ParseAction(l.Action)
		if err != nil {
			errs = append(errs, errors.NewValidationError(field+".action", l.Action, err.Error()))
		}
		exp, err := parseDate(field+".expiration", l.Expiration)
		errs = append(errs, err)

		legs = append(legs, models.OptionLeg{
			Type:              typ,
			Action:            action,
			Strike:            l.Strike,
			Premium:           l.Premium,
			Quantity:          orDefault(l.Quantity, 1),
			Expiration:        exp,
			ImpliedVolatility: orDefault(l.Volatility, h.cfg.Pricing.DefaultVolatility),
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return legs, validation.Legs(legs)
}

func (h *Handler) market(in marketRequest) (models.MarketState, error) {
	m := models.MarketState{UnderlyingPrice: in.UnderlyingPrice, RiskFreeRate: h.rate(in.RiskFreeRate), EvaluationDate: h.now()}
	if in.EvaluationDate != "" {
		d, err := parseDate("market.evaluation_date", in.EvaluationDate)
		if err != nil {
			return m, err
		}
		m.EvaluationDate = d
	}
	return m, validation.Market(m)
}

func (h *Handler) rate(r *float64) float64 {
	if r == nil {
		return h.cfg.Pricing.RiskFreeRate
	}
	return *r
}

func optionType(field, s string) (models.OptionType, error) {
	t, err := models.ParseOptionType(s)
	if err != nil {
		return "", errors.NewValidationError(field, s, err.Error())
	}
	return t, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, s string) (time.Time, error) {
	if d, err := time.Parse(chain.DateLayout, s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NewValidationError(field, s, "want YYYY-MM-DD or RFC 3339")
	}
	return d, nil
}

func orDefault[T int | float64](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}

func roundToStep(x, step float64) float64 {
	if step <= 0 {
		return x
	}
	return math.Round(x/step) * step
}
