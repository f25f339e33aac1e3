package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"financas/internal/cli"
	"financas/internal/core"
	"financas/internal/http"
	"financas/internal/importer"
	"financas/internal/log"
	"financas/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API and the recurring materializer",
	Long: `Serve the ledger API on PORT. Unless --no-recurring is given, the
recurring materializer runs alongside it every RECURRING_INTERVAL.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("write-limit", 60, "Write requests allowed per client per minute (0 disables)")
	serveCmd.Flags().Bool("no-recurring", false, "Do not run the recurring materializer loop")
	serveCmd.Flags().Bool("generate-past", false, "Default for generating earlier installments of a series")
	serveCmd.Flags().Bool("no-purchase-date-logic", false, "Treat seed dates as invoice-month dates by default")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	writeLimit, _ := cmd.Flags().GetInt("write-limit")
	noRecurring, _ := cmd.Flags().GetBool("no-recurring")
	generatePast, _ := cmd.Flags().GetBool("generate-past")
	noPurchaseDate, _ := cmd.Flags().GetBool("no-purchase-date-logic")

	return withApp(cmd, func(app *cli.App) error {
		logger := app.Logger
		ctx, cancel := cli.SignalContext(logger)
		defer cancel()

		clock := core.SystemClock{}
		srv := http.NewServer(":"+app.Config.Port, http.Deps{
			Ledger:       app.Ledger,
			Templates:    app.Backend.Store,
			Materializer: app.Materializer,
			Importer:     importer.NewNormalizer(clock, logger),
			Clock:        clock,
			Logger:       logger,
			Series: services.SeriesOptions{
				GenerateFuture:       true,
				GeneratePast:         generatePast,
				UsePurchaseDateLogic: !noPurchaseDate,
			},
			WriteLimit: writeLimit,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("Server starting", "port", app.Config.Port, "backend", app.Config.DataBackend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		if !noRecurring {
			g.Go(func() error {
				logger.Info("Recurring materializer configured", "interval", app.Config.RecurringInterval)
				return app.Materializer.Run(gctx, app.Config.RecurringInterval, clock)
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("Server exited")
			return nil
		})
		return g.Wait()
	})
}
