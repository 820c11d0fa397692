package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"options-lab/internal/errors"
	"options-lab/internal/logging"
	"options-lab/internal/models"
	"options-lab/internal/payoff"
	"options-lab/internal/pricing"
	"options-lab/internal/validation"
)

// addOptionCommands adds single-option pricing commands.
func addOptionCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "option",
		Short: "Single option pricing",
		Long:  "Price a European option, inspect its Greeks and chart its payoff.",
	}

	cmd.AddCommand(newOptionPriceCmd(app))
	cmd.AddCommand(newOptionGreeksCmd(app))
	cmd.AddCommand(newOptionPayoffCmd(app))
	cmd.AddCommand(newOptionGridCmd(app))

	rootCmd.AddCommand(cmd)
}

// optionInput is the flag set shared by the option commands.
type optionInput struct {
	Type       models.OptionType
	Spot       float64
	Strike     float64
	Premium    float64
	Days       int
	Volatility float64
	Rate       float64
}

func addOptionFlags(cmd *cobra.Command, premium, timed bool) {
	cmd.Flags().String("type", "call", "Option type (call|put)")
	cmd.Flags().Float64("spot", 0, "Underlying price")
	cmd.Flags().Float64("strike", 0, "Strike price")
	if premium {
		cmd.Flags().Float64("premium", 0, "Premium paid per share")
	}
	if timed {
		cmd.Flags().Int("days", 30, "Days to expiry")
		cmd.Flags().Float64("vol", 0, "Implied volatility as a fraction (default from config)")
		cmd.Flags().Float64("rate", 0, "Risk-free rate as a fraction (default from config)")
	}
	_ = cmd.MarkFlagRequired("spot")
	_ = cmd.MarkFlagRequired("strike")
}

// readOptionFlags parses and validates the shared flags, reporting every bad
// field at once.
func (app *App) readOptionFlags(cmd *cobra.Command) (optionInput, error) {
	in := optionInput{
		Volatility: app.Config.Pricing.DefaultVolatility,
		Rate:       app.Config.Pricing.RiskFreeRate,
	}
	flags := cmd.Flags()

	typ, _ := flags.GetString("type")
	in.Spot, _ = flags.GetFloat64("spot")
	in.Strike, _ = flags.GetFloat64("strike")

	var errs []error
	t, err := models.ParseOptionType(typ)
	if err != nil {
		errs = append(errs, errors.NewValidationError("type", typ, err.Error()))
	}
	in.Type = t
	errs = append(errs, validation.Price("spot", in.Spot), validation.Price("strike", in.Strike))

	if flags.Lookup("premium") != nil {
		in.Premium, _ = flags.GetFloat64("premium")
		if in.Premium < 0 {
			errs = append(errs, errors.NewValidationError("premium", in.Premium, "must be at least 0"))
		}
	}
	if flags.Lookup("days") != nil {
		in.Days, _ = flags.GetInt("days")
		errs = append(errs, validation.Days("days", in.Days))
		if flags.Changed("vol") {
			in.Volatility, _ = flags.GetFloat64("vol")
		}
		if flags.Changed("rate") {
			in.Rate, _ = flags.GetFloat64("rate")
		}
		errs = append(errs, validation.Volatility("vol", in.Volatility), validation.Rate("rate", in.Rate))
	}
	return in, errors.Join(errs...)
}

func (in optionInput) years() float64 {
	return float64(in.Days) / pricing.DaysPerYear
}

func (in optionInput) title() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(string(in.Type)), FormatStrike(in.Strike))
}

type priceResult struct {
	models.Greeks
	Intrinsic float64 `json:"intrinsic"`
	TimeValue float64 `json:"time_value"`
}

func newOptionPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Black-Scholes price of a European option",
		Example: `  optlab option price --type call --spot 100 --strike 105 --days 30 --vol 0.25
  optlab option price --type put --spot 100 --strike 95 --days 60 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := app.readOptionFlags(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			g := pricing.Calculate(in.Spot, in.Strike, in.years(), in.Rate, in.Volatility, in.Type)
			intrinsic := pricing.Intrinsic(in.Spot, in.Strike, in.Type)
			logging.LogEvaluation(app.Logger, "option_price", 1, in.Spot, time.Since(start))

			res := priceResult{Greeks: g, Intrinsic: intrinsic, TimeValue: g.Price - intrinsic}
			if output.IsJSON() {
				return output.JSON(res)
			}

			output.Header("%s · spot %s · %d days · IV %s", in.title(), FormatPrice(in.Spot), in.Days, FormatIV(in.Volatility))
			output.Printf("  Price:      %s\n", output.BoldText(FormatPrice(res.Price)))
			output.Printf("  Intrinsic:  %s\n", FormatPrice(res.Intrinsic))
			output.Printf("  Time value: %s\n", FormatPrice(res.TimeValue))
			output.Printf("  Contract:   %s\n", FormatAmount(res.Price*models.ContractMultiplier))
			output.Println()
			output.Printf("  %s\n", FormatGreeks(g))
			return nil
		},
	}
	addOptionFlags(cmd, false, true)
	return cmd
}

func newOptionGreeksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "greeks",
		Short:   "Greeks of a European option",
		Long:    "Delta, gamma, theta (per day), vega and rho (per 1% move) per share and per contract.",
		Example: `  optlab option greeks --type put --spot 100 --strike 100 --days 45`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := app.readOptionFlags(cmd)
			if err != nil {
				return err
			}

			g := pricing.Calculate(in.Spot, in.Strike, in.years(), in.Rate, in.Volatility, in.Type)
			if output.IsJSON() {
				return output.JSON(g)
			}

			output.Header("Greeks · %s · %d days", in.title(), in.Days)
			table := NewTable(output, "Greek", "Per share", "Per contract")
			for _, row := range []struct {
				name  string
				value float64
			}{
				{"Delta (Δ)", g.Delta},
				{"Gamma (Γ)", g.Gamma},
				{"Theta (Θ)", g.Theta},
				{"Vega (ν)", g.Vega},
				{"Rho (ρ)", g.Rho},
			} {
				table.AddRow(row.name,
					strconv.FormatFloat(row.value, 'f', 4, 64),
					output.Signed(row.value, strconv.FormatFloat(row.value*models.ContractMultiplier, 'f', 2, 64)))
			}
			table.Render()
			return nil
		},
	}
	addOptionFlags(cmd, false, true)
	return cmd
}

func newOptionPayoffCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "payoff",
		Short:   "At-expiration payoff of a long option",
		Example: `  optlab option payoff --type call --spot 100 --strike 100 --premium 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := app.readOptionFlags(cmd)
			if err != nil {
				return err
			}
			rng, _ := cmd.Flags().GetFloat64("range")
			every, _ := cmd.Flags().GetInt("every")
			if rng == 0 {
				rng = app.Config.Analysis.PayoffRange
			}
			if err := validation.Range("range", rng); err != nil {
				return err
			}

			points := slices.Collect(payoff.PayoffCurve(in.Strike, in.Premium, in.Type, in.Spot, rng))
			be := payoff.BreakEven(in.Strike, in.Premium, in.Type)
			if output.IsJSON() {
				return output.JSON(map[string]any{"breakeven": be, "points": points})
			}

			output.Header("Payoff · long %s @ %s", in.title(), FormatPrice(in.Premium))
			output.Printf("  Breakeven: %s\n\n", output.BoldText(FormatPrice(be)))
			table := NewTable(output, "Price", "P&L/share", "P&L/contract")
			for i, p := range points {
				if every > 1 && i%every != 0 && i != len(points)-1 {
					continue
				}
				table.AddRow(FormatPrice(p.StockPrice),
					output.Signed(p.PnL, FormatPrice(p.PnL)),
					output.Signed(p.PnL, FormatAmount(p.PnL*models.ContractMultiplier)))
			}
			table.Render()
			return nil
		},
	}
	addOptionFlags(cmd, true, false)
	cmd.Flags().Float64("range", 0, "Price window as a fraction of spot (default from config)")
	cmd.Flags().Int("every", 10, "Print every Nth curve point")
	return cmd
}

func newOptionGridCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "P&L of a long option by price and elapsed days",
		Long: `Theoretical P&L per share of a long option on a grid of underlying prices
(±25% of spot) and elapsed days, from today to expiry.`,
		Example: `  optlab option grid --type call --spot 100 --strike 100 --premium 3 --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			in, err := app.readOptionFlags(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			grid := payoff.TimeValueGrid(in.Strike, in.Premium, in.Type, in.Spot, in.Days, in.Volatility, in.Rate)
			logging.LogEvaluation(app.Logger, "option_grid", 1, in.Spot, time.Since(start))
			if output.IsJSON() {
				return output.JSON(grid)
			}

			output.Header("P&L grid · long %s @ %s", in.title(), FormatPrice(in.Premium))
			headers := []string{"Price"}
			for _, d := range grid.Days {
				headers = append(headers, "d"+strconv.Itoa(d))
			}
			table := NewTable(output, headers...)
			for i, p := range grid.Prices {
				row := []string{FormatPrice(p)}
				for _, v := range grid.Values[i] {
					row = append(row, output.Signed(v, FormatPrice(v)))
				}
				table.AddRow(row...)
			}
			table.Render()
			return nil
		},
	}
	addOptionFlags(cmd, true, true)
	return cmd
}
