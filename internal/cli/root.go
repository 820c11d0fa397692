// Package cli provides the optlab command-line interface.
package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"options-lab/internal/config"
	"options-lab/internal/logging"
	"options-lab/internal/templates"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. They are filled in once flags
// have been parsed.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Catalog *templates.Catalog
	Now     func() time.Time
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop(), Now: time.Now}

	rootCmd := &cobra.Command{
		Use:   "optlab",
		Short: "Options pricing and strategy analysis",
		Long: `optlab prices European options with Black-Scholes, computes Greeks and
payoff curves, and analyzes multi-leg strategies: max profit and loss,
breakevens, probability of profit and reward to risk.

Strategies can be built from the template catalog, priced theoretically or
against an option chain CSV, and ranked with 'optlab strategy scan'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/options-lab)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addOptionCommands(rootCmd, app)
	addStrategyCommands(rootCmd, app)
	addServeCommand(rootCmd, app)

	return rootCmd
}

// init loads the configuration, logger and template catalog.
func (app *App) init(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	app.Config = cfg

	if !cfg.UI.ColorEnabled {
		color.NoColor = true
	}
	logCfg := cfg.LogConfig()
	logCfg.Out = cmd.ErrOrStderr()
	app.Logger = logging.NewLoggerWithConfig(logCfg)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}
	if cfg.Created {
		app.Logger.Info().Str("path", cfg.Path()).Msg("Wrote default configuration")
	}

	custom, err := templates.LoadCustom(filepath.Join(cfg.Dir, templates.CustomFileName))
	if err != nil {
		return err
	}
	app.Catalog, err = templates.NewCatalog(custom...)
	if err != nil {
		return err
	}
	app.Logger.Debug().Int("templates", app.Catalog.Len()).Int("custom", len(custom)).Msg("Catalog loaded")
	return nil
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("optlab v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the configuration in config.toml.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"dir": app.Config.Dir, "file": app.Config.Path()})
			}
			output.Println(app.Config.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and custom templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{"valid": true, "templates": app.Catalog.Len()})
			}
			output.Success("✓ Configuration is valid (%d templates)", app.Catalog.Len())
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Header("Pricing")
	output.Printf("  Risk-free rate:     %s\n", FormatIV(cfg.Pricing.RiskFreeRate))
	output.Printf("  Default volatility: %s\n", FormatIV(cfg.Pricing.DefaultVolatility))
	output.Println()

	output.Header("Analysis")
	output.Printf("  Payoff range:   ±%.0f%%\n", cfg.Analysis.PayoffRange*100)
	output.Printf("  Search range:   ±%.0f%%\n", cfg.Analysis.SearchRange*100)
	output.Printf("  Strike width:   %s\n", FormatStrike(cfg.Analysis.StrikeWidth))
	output.Printf("  Days to expiry: %d (far %d)\n", cfg.Analysis.DaysToExpiry, cfg.Analysis.FarDays)
	output.Printf("  Scan workers:   %s\n", workersLabel(cfg.Analysis.ScanWorkers))
	output.Println()

	output.Header("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Read timeout:    %s\n", cfg.Server.ReadTimeout)
	output.Printf("  Write timeout:   %s\n", cfg.Server.WriteTimeout)
	output.Printf("  Request timeout: %s\n", cfg.Server.RequestTimeout)
	output.Println()

	output.Header("Logging")
	output.Printf("  Level: %s\n", cfg.Logging.Level)
	output.Printf("  File:  %v\n", cfg.Logging.File)
	if cfg.Logging.File {
		output.Printf("  Path:  %s\n", cfg.LogConfig().FilePath)
	}
}

func workersLabel(n int) string {
	if n <= 0 {
		return "one per CPU"
	}
	return fmt.Sprintf("%d", n)
}
