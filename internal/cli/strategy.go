package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"options-lab/internal/chain"
	"options-lab/internal/errors"
	"options-lab/internal/logging"
	"options-lab/internal/models"
	"options-lab/internal/scan"
	"options-lab/internal/strategy"
	"options-lab/internal/templates"
	"options-lab/internal/validation"
	"options-lab/pkg/utils"
)

// addStrategyCommands adds multi-leg strategy commands.
func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Multi-leg strategy analysis",
		Long: `Build strategies from the template catalog or from explicit legs and
analyze their payoff, risk and Greeks.`,
	}

	cmd.AddCommand(newStrategyListCmd(app))
	cmd.AddCommand(newStrategyShowCmd(app))
	cmd.AddCommand(newStrategyBuildCmd(app))
	cmd.AddCommand(newStrategyAnalyzeCmd(app))
	cmd.AddCommand(newStrategyScanCmd(app))

	rootCmd.AddCommand(cmd)
}

func newStrategyListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List strategy templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			outlook, err := outlookFlag(cmd)
			if err != nil {
				return err
			}

			var list []templates.Template
			for _, t := range app.Catalog.All() {
				if outlook == "" || t.Outlook == outlook {
					list = append(list, t)
				}
			}
			if output.IsJSON() {
				return output.JSON(list)
			}

			output.Header("Strategy templates (%d)", len(list))
			table := NewTable(output, "ID", "Name", "Outlook", "Legs", "Description")
			for _, t := range list {
				name := t.Name
				if t.Custom {
					name += " *"
				}
				table.AddRow(output.Cyan(string(t.ID)), name, string(t.Outlook), strconv.Itoa(len(t.Legs)), TruncateString(t.Description, 60))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().String("outlook", "", "Filter by outlook (bullish|bearish|neutral|volatile)")
	return cmd
}

func newStrategyShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "show <template>",
		Short:   "Show a template's leg shapes",
		Example: `  optlab strategy show iron-condor`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			t, err := app.Catalog.Get(templates.ID(args[0]))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(t)
			}

			output.Header("%s (%s)", t.Name, t.ID)
			output.Printf("  Outlook: %s\n", t.Outlook)
			if t.Description != "" {
				output.Printf("  %s\n", t.Description)
			}
			if t.RequiresStock {
				output.Warning("  Also holds 100 shares per contract; the stock leg is not modeled.")
			}
			output.Println()

			table := NewTable(output, "#", "Action", "Qty", "Type", "Strike", "Expiry")
			for i, l := range t.Legs {
				table.AddRow(strconv.Itoa(i+1), strings.ToUpper(string(l.Action)), strconv.Itoa(l.Quantity),
					strings.ToUpper(string(l.Type)), strikeShape(l.StrikeOffset), l.Expiry.String())
			}
			table.Render()
			return nil
		},
	}
}

// strikeShape renders a strike offset as an expression in center and width.
func strikeShape(offset float64) string {
	switch {
	case offset == 0:
		return "center"
	case offset == 1:
		return "center + width"
	case offset == -1:
		return "center - width"
	case offset > 0:
		return "center + " + FormatStrike(offset) + "*width"
	}
	return "center - " + FormatStrike(-offset) + "*width"
}

func newStrategyBuildCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <template>",
		Short: "Build a template into priced legs and analyze it",
		Long: `Resolve a template around a center strike and analyze the result.

Without --chain, legs are priced with Black-Scholes at a flat volatility.
With --chain, each leg takes the nearest listed strike and its mid price.`,
		Example: `  optlab strategy build iron-condor --spot 100
  optlab strategy build bull-call-spread --spot 100 --width 10 --days 45
  optlab strategy build calendar-spread --spot 100 --chain spy.csv --symbol SPY`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			t, err := app.Catalog.Get(templates.ID(args[0]))
			if err != nil {
				return err
			}
			market, err := app.marketFlags(cmd)
			if err != nil {
				return err
			}
			opts, err := app.analysisFlags(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			center, _ := flags.GetFloat64("center")
			width, _ := flags.GetFloat64("width")
			days, _ := flags.GetInt("days")
			farDays, _ := flags.GetInt("far-days")
			qty, _ := flags.GetInt("qty")
			days = orDefault(days, app.Config.Analysis.DaysToExpiry)
			farDays = max(orDefault(farDays, app.Config.Analysis.FarDays), days+1)
			if err := errors.Join(
				validation.Days("days", days),
				validation.Days("far-days", farDays),
				nonNegative("center", center),
				nonNegative("width", width),
			); err != nil {
				return err
			}

			c, err := app.chainFlags(cmd, market.UnderlyingPrice)
			if err != nil {
				return err
			}

			var legs []models.OptionLeg
			if c != nil {
				near, far := chainExpiries(c, market.EvaluationDate, days, farDays)
				legs, err = chain.Bind(t, c, chain.BindParams{
					Center:   center,
					Width:    width,
					Near:     near,
					Far:      far,
					Quantity: qty,
				})
				if err != nil {
					return err
				}
			} else {
				width = orDefault(width, app.Config.Analysis.StrikeWidth)
				center = orDefault(center, math.Round(market.UnderlyingPrice/width)*width)
				vol, _ := flags.GetFloat64("vol")
				vol = orDefault(vol, app.Config.Pricing.DefaultVolatility)
				if err := errors.Join(validation.Volatility("vol", vol), t.CheckStrikes(center, width)); err != nil {
					return err
				}
				legs = templates.Preview(t, market, templates.PreviewParams{
					Center:     center,
					Width:      width,
					Volatility: vol,
					Near:       market.EvaluationDate.AddDate(0, 0, days),
					Far:        market.EvaluationDate.AddDate(0, 0, farDays),
					Quantity:   qty,
				})
			}

			if err := validation.Legs(legs); err != nil {
				return err
			}

			start := time.Now()
			a := strategy.Analyze(legs, market, opts)
			logging.LogEvaluation(logging.WithTemplate(app.Logger, string(t.ID)), "build", len(legs), market.UnderlyingPrice, time.Since(start))

			if output.IsJSON() {
				return output.JSON(map[string]any{"template": t, "analysis": a})
			}
			output.Header("%s · spot %s", t.Name, FormatPrice(market.UnderlyingPrice))
			every, _ := flags.GetInt("every")
			app.displayAnalysis(output, a, every)
			return nil
		},
	}

	addMarketFlags(cmd)
	addAnalysisFlags(cmd)
	addChainFlags(cmd)
	cmd.Flags().Float64("center", 0, "Center strike (default: spot rounded to the width, or ATM on a chain)")
	cmd.Flags().Float64("width", 0, "Strike width (default from config, or the chain's strike step)")
	cmd.Flags().Int("days", 0, "Days to the near expiry (default from config)")
	cmd.Flags().Int("far-days", 0, "Days to the far expiry (default from config)")
	cmd.Flags().Float64("vol", 0, "Flat implied volatility for theoretical pricing (default from config)")
	cmd.Flags().Int("qty", 1, "Contracts per template unit")
	return cmd
}

func newStrategyAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze explicit legs",
		Long: `Analyze a position given leg by leg. Each --leg is

  action:type:strike:premium:expiry[:quantity[:iv]]

for example buy:call:100:5.20:2024-03-15 or sell:put:95:2.10:2024-03-15:2:0.28.`,
		Example: `  optlab strategy analyze --spot 100 \
    --leg buy:call:100:5:2024-03-31 --leg buy:put:100:5:2024-03-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			specs, _ := cmd.Flags().GetStringArray("leg")

			legs := make([]models.OptionLeg, 0, len(specs))
			var errs []error
			for i, spec := range specs {
				leg, err := parseLegSpec(i, spec, app.Config.Pricing.DefaultVolatility)
				errs = append(errs, err)
				legs = append(legs, leg)
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			if err := validation.Legs(legs); err != nil {
				return err
			}
			market, err := app.marketFlags(cmd)
			if err != nil {
				return err
			}
			opts, err := app.analysisFlags(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			a := strategy.Analyze(legs, market, opts)
			logging.LogEvaluation(app.Logger, "analyze", len(legs), market.UnderlyingPrice, time.Since(start))

			if output.IsJSON() {
				return output.JSON(a)
			}
			output.Header("Position · spot %s", FormatPrice(market.UnderlyingPrice))
			every, _ := cmd.Flags().GetInt("every")
			app.displayAnalysis(output, a, every)
			return nil
		},
	}

	addMarketFlags(cmd)
	addAnalysisFlags(cmd)
	cmd.Flags().StringArray("leg", nil, "Leg as action:type:strike:premium:expiry[:qty[:iv]] (repeatable)")
	_ = cmd.MarkFlagRequired("leg")
	return cmd
}

func newStrategyScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate every template and rank by reward to risk",
		Long: `Build every template (optionally only one outlook) around the spot price,
analyze each concurrently and rank them. Bounded-risk positions rank by
reward to risk; unlimited-loss positions rank last.`,
		Example: `  optlab strategy scan --spot 100 --outlook neutral
  optlab strategy scan --spot 450 --chain spy.csv --symbol SPY --top 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			outlook, err := outlookFlag(cmd)
			if err != nil {
				return err
			}
			market, err := app.marketFlags(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			center, _ := flags.GetFloat64("center")
			width, _ := flags.GetFloat64("width")
			vol, _ := flags.GetFloat64("vol")
			days, _ := flags.GetInt("days")
			farDays, _ := flags.GetInt("far-days")
			workers, _ := flags.GetInt("workers")
			timeout, _ := flags.GetDuration("timeout")
			top, _ := flags.GetInt("top")

			req := scan.Request{
				Market:       market,
				Center:       center,
				Width:        orDefault(width, app.Config.Analysis.StrikeWidth),
				Volatility:   orDefault(vol, app.Config.Pricing.DefaultVolatility),
				DaysToExpiry: orDefault(days, app.Config.Analysis.DaysToExpiry),
				FarDays:      orDefault(farDays, app.Config.Analysis.FarDays),
				SearchRange:  app.Config.Analysis.SearchRange,
				Outlook:      outlook,
			}
			if err := errors.Join(
				validation.Volatility("vol", req.Volatility),
				validation.Days("days", req.DaysToExpiry),
				validation.Days("far-days", req.FarDays),
				nonNegative("center", center),
				nonNegative("width", width),
			); err != nil {
				return err
			}

			req.Chain, err = app.chainFlags(cmd, market.UnderlyingPrice)
			if err != nil {
				return err
			}
			if req.Chain != nil && width == 0 {
				near, _ := chainExpiries(req.Chain, market.EvaluationDate, req.DaysToExpiry, req.FarDays)
				req.Width = chain.StrikeStep(req.Chain, near)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			scanner := scan.New(app.Catalog, orDefault(workers, app.Config.Analysis.ScanWorkers), app.Logger)
			results, err := scanner.Run(ctx, req)
			if err != nil {
				return err
			}
			if top > 0 && len(results) > top {
				results = results[:top]
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			displayScan(output, results, market)
			return nil
		},
	}

	addMarketFlags(cmd)
	addChainFlags(cmd)
	cmd.Flags().String("outlook", "", "Only scan one outlook (bullish|bearish|neutral|volatile)")
	cmd.Flags().Float64("center", 0, "Center strike (default: spot rounded to the width, or ATM on a chain)")
	cmd.Flags().Float64("width", 0, "Strike width (default from config, or the chain's strike step)")
	cmd.Flags().Float64("vol", 0, "Flat implied volatility for theoretical pricing (default from config)")
	cmd.Flags().Int("days", 0, "Days to the near expiry (default from config)")
	cmd.Flags().Int("far-days", 0, "Days to the far expiry (default from config)")
	cmd.Flags().Int("workers", 0, "Concurrent evaluations (default from config)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Scan deadline")
	cmd.Flags().Int("top", 0, "Show only the best N results")
	return cmd
}

func displayScan(output *Output, results []scan.Result, market models.MarketState) {
	output.Header("Strategy scan · spot %s · %d results", FormatPrice(market.UnderlyingPrice), len(results))
	table := NewTable(output, "#", "Template", "Net premium", "Max profit", "Max loss", "R:R", "PoP")
	var failed []scan.Result
	rank := 0
	for _, r := range results {
		if r.Err != "" {
			failed = append(failed, r)
			continue
		}
		rank++
		m := r.Metrics
		table.AddRow(strconv.Itoa(rank), output.Cyan(string(r.Template.ID)),
			output.Signed(m.NetPremium, FormatAmount(m.NetPremium)),
			output.Green(FormatAmount(m.MaxProfit)),
			output.Red(FormatAmount(m.MaxLoss)),
			rewardRiskLabel(r),
			utils.FormatProbability(r.PoP))
	}
	table.Render()

	if len(failed) > 0 {
		output.Println()
		output.Warning("Could not build %d templates:", len(failed))
		for _, r := range failed {
			output.Dim("  %s: %s", r.Template.ID, r.Err)
		}
	}
}

func rewardRiskLabel(r scan.Result) string {
	switch {
	case r.Metrics.UnlimitedLoss():
		return "-"
	case r.Metrics.UnlimitedProfit() || r.Metrics.MaxLoss >= 0:
		return "1:∞"
	}
	return FormatRewardRisk(r.RewardRisk)
}

func (app *App) displayAnalysis(output *Output, a strategy.Analysis, every int) {
	layout := app.Config.UI.DateFormat
	m := a.Metrics

	output.Println()
	output.Bold("Legs")
	for i, l := range a.Legs {
		output.Printf("  %d. %s\n", i+1, FormatLeg(l, layout))
	}
	output.Println()

	kind := "debit"
	if m.IsCredit {
		kind = "credit"
	}
	output.Bold("Analysis")
	output.Printf("  Net premium:  %s (%s)\n", output.Signed(m.NetPremium, FormatAmount(m.NetPremium)), kind)
	output.Printf("  Max profit:   %s%s\n", output.Green(FormatAmount(m.MaxProfit)), atPrice(m.MaxProfit, m.MaxProfitPrice))
	output.Printf("  Max loss:     %s%s\n", output.Red(FormatAmount(m.MaxLoss)), atPrice(m.MaxLoss, m.MaxLossPrice))
	output.Printf("  Breakevens:   %s\n", FormatBreakevens(m.Breakevens))
	if !m.UnlimitedLoss() && !m.UnlimitedProfit() && m.MaxLoss < 0 {
		output.Printf("  Reward/risk:  %s\n", FormatRewardRisk(a.RewardRisk))
	}
	output.Printf("  Probability:  %s\n", utils.FormatProbability(a.PoP))
	output.Printf("  P&L at spot:  %s\n", output.Signed(a.PnLAtSpot, FormatAmount(a.PnLAtSpot)))
	output.Println()

	output.Bold("Greeks")
	output.Printf("  %s\n", FormatGreeks(a.Greeks))
	output.Println()

	output.Bold("Payoff")
	table := NewTable(output, "Price", "P&L")
	for i, p := range a.Curve {
		if every > 1 && i%every != 0 && i != len(a.Curve)-1 {
			continue
		}
		table.AddRow(FormatPrice(p.StockPrice), output.Signed(p.PnL, FormatAmount(p.PnL)))
	}
	table.Render()
}

func atPrice(amount, price float64) string {
	if math.IsInf(amount, 0) {
		return ""
	}
	return " at " + FormatPrice(price)
}

// parseLegSpec parses action:type:strike:premium:expiry[:qty[:iv]].
func parseLegSpec(i int, spec string, defaultIV float64) (models.OptionLeg, error) {
	field := fmt.Sprintf("legs[%d]", i)
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 5 || len(parts) > 7 {
		return models.OptionLeg{}, errors.NewValidationError(field, spec, "want action:type:strike:premium:expiry[:qty[:iv]]")
	}

	leg := models.OptionLeg{Quantity: 1, ImpliedVolatility: defaultIV}
	var errs []error
	var err error
	if leg.Action, err = models.ParseAction(parts[0]); err != nil {
		errs = append(errs, errors.NewValidationError(field+".action", parts[0], err.Error()))
	}
	if leg.Type, err = models.ParseOptionType(parts[1]); err != nil {
		errs = append(errs, errors.NewValidationError(field+".type", parts[1], err.Error()))
	}
	if leg.Strike, err = strconv.ParseFloat(parts[2], 64); err != nil {
		errs = append(errs, errors.NewValidationError(field+".strike", parts[2], "not a number"))
	}
	if leg.Premium, err = strconv.ParseFloat(parts[3], 64); err != nil {
		errs = append(errs, errors.NewValidationError(field+".premium", parts[3], "not a number"))
	}
	if leg.Expiration, err = time.Parse(chain.DateLayout, parts[4]); err != nil {
		errs = append(errs, errors.NewValidationError(field+".expiration", parts[4], "want YYYY-MM-DD"))
	}
	if len(parts) > 5 {
		if leg.Quantity, err = strconv.Atoi(parts[5]); err != nil {
			errs = append(errs, errors.NewValidationError(field+".quantity", parts[5], "not an integer"))
		}
	}
	if len(parts) > 6 {
		if leg.ImpliedVolatility, err = strconv.ParseFloat(parts[6], 64); err != nil {
			errs = append(errs, errors.NewValidationError(field+".implied_volatility", parts[6], "not a number"))
		}
	}
	return leg, errors.Join(errs...)
}

func addMarketFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("spot", 0, "Underlying price")
	cmd.Flags().Float64("rate", 0, "Risk-free rate as a fraction (default from config)")
	cmd.Flags().String("date", "", "Evaluation date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("spot")
}

func (app *App) marketFlags(cmd *cobra.Command) (models.MarketState, error) {
	flags := cmd.Flags()
	m := models.MarketState{RiskFreeRate: app.Config.Pricing.RiskFreeRate, EvaluationDate: app.Now()}
	m.UnderlyingPrice, _ = flags.GetFloat64("spot")
	if flags.Changed("rate") {
		m.RiskFreeRate, _ = flags.GetFloat64("rate")
	}
	if date, _ := flags.GetString("date"); date != "" {
		d, err := time.Parse(chain.DateLayout, date)
		if err != nil {
			return m, errors.NewValidationError("date", date, "want YYYY-MM-DD")
		}
		m.EvaluationDate = d
	}
	return m, validation.Market(m)
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().Int("days-from-now", strategy.AtExpiration, "Show the payoff after this many days (-1 = at expiration)")
	cmd.Flags().Float64("search-range", 0, "Max profit/loss search window as a fraction of spot (default from config)")
	cmd.Flags().Float64("curve-range", 0, "Payoff table window as a fraction of spot (default from config)")
	cmd.Flags().Int("every", 10, "Print every Nth payoff point")
}

func (app *App) analysisFlags(cmd *cobra.Command) (strategy.Options, error) {
	flags := cmd.Flags()
	opts := strategy.Options{}
	opts.DaysFromNow, _ = flags.GetInt("days-from-now")
	opts.SearchRange, _ = flags.GetFloat64("search-range")
	opts.CurveRange, _ = flags.GetFloat64("curve-range")
	opts.SearchRange = orDefault(opts.SearchRange, app.Config.Analysis.SearchRange)
	opts.CurveRange = orDefault(opts.CurveRange, app.Config.Analysis.PayoffRange)

	var errs []error
	if opts.DaysFromNow != strategy.AtExpiration {
		errs = append(errs, validation.Days("days-from-now", opts.DaysFromNow))
	}
	errs = append(errs, validation.Range("search-range", opts.SearchRange), validation.Range("curve-range", opts.CurveRange))
	return opts, errors.Join(errs...)
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("chain", "", "Option chain CSV (type,strike,bid,ask,last_price,implied_volatility,expiration)")
	cmd.Flags().String("symbol", "", "Underlying symbol of the chain")
}

// chainFlags loads --chain if given; nil means price theoretically.
func (app *App) chainFlags(cmd *cobra.Command, spot float64) (*models.OptionChain, error) {
	path, _ := cmd.Flags().GetString("chain")
	if path == "" {
		return nil, nil
	}
	symbol, _ := cmd.Flags().GetString("symbol")
	if symbol != "" {
		symbol = validation.SanitizeSymbol(symbol)
		if err := validation.Symbol(symbol); err != nil {
			return nil, err
		}
	}

	c, err := chain.LoadFile(path, symbol, spot)
	if err != nil {
		return nil, err
	}
	app.Logger.Debug().Str("path", path).Str("symbol", c.Symbol).Int("quotes", len(c.Quotes)).Msg("Chain loaded")
	return c, nil
}

// chainExpiries picks the first listed expiries on or after the near and far
// targets.
func chainExpiries(c *models.OptionChain, from time.Time, days, farDays int) (near, far time.Time) {
	near, _ = chain.ExpiryOnOrAfter(c, from.AddDate(0, 0, days))
	far, _ = chain.ExpiryOnOrAfter(c, from.AddDate(0, 0, farDays))
	return near, far
}

func outlookFlag(cmd *cobra.Command) (templates.Outlook, error) {
	s, _ := cmd.Flags().GetString("outlook")
	o := templates.Outlook(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case "", templates.Bullish, templates.Bearish, templates.Neutral, templates.Volatile:
		return o, nil
	}
	return "", errors.NewValidationError("outlook", s, "must be one of bullish bearish neutral volatile")
}

func nonNegative(field string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return errors.NewValidationError(field, v, "must be at least 0")
	}
	return nil
}

func orDefault[T int | float64](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}
