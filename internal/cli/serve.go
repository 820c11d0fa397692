package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"options-lab/internal/api"
	"options-lab/internal/scan"
)

func addServeCommand(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyzer over HTTP",
		Long: `Start the JSON API used by UI layers. Endpoints live under /api/v1 and
answer with a {code, msg, data} envelope; /health reports liveness.

Stop with Ctrl+C; in-flight requests get a few seconds to finish.`,
		Example: `  optlab serve
  optlab serve --addr 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config.Server
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}
			if debug, _ := cmd.Flags().GetBool("debug"); !debug {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scanner := scan.New(app.Catalog, app.Config.Analysis.ScanWorkers, app.Logger)
			handler := api.NewHandler(app.Catalog, scanner, app.Config, app.Now)
			router := api.NewRouter(handler, app.Logger, cfg.RequestTimeout)

			if err := api.NewServer(router, cfg, app.Logger).Start(ctx); err != nil {
				return err
			}
			app.Logger.Info().Msg("API server stopped")
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(cmd)
}
