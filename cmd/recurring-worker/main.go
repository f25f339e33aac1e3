package main

import (
	"context"
	"log/slog"
	"os"

	"financas/internal/cli"
	"financas/internal/core"
	"financas/internal/log"
)

func main() {
	app, err := cli.Bootstrap(context.Background())
	if err != nil {
		slog.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger := app.Logger.WithComponent(log.ComponentRecurring)
	logger.Info("Starting recurring-worker",
		"interval", app.Config.RecurringInterval,
		"backend", app.Config.DataBackend)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	// Run materializes the current period at startup and then on every tick.
	if err := app.Materializer.Run(ctx, app.Config.RecurringInterval, core.SystemClock{}); err != nil {
		logger.Error("Recurring materializer stopped with error", log.FieldError, err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
