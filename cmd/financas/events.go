package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"financas/internal/amqp"
	"financas/internal/cli"
	"financas/internal/log"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow the ledger event queue",
	Long: `Consume ledger events from AMQP_QUEUE and log each one until
interrupted. Requires AMQP_URL.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(app *cli.App) error {
		if app.Backend.Events == nil {
			return errors.New("ledger events are disabled: set AMQP_URL")
		}
		logger := app.Logger.WithComponent(log.ComponentAMQP)
		ctx, cancel := cli.SignalContext(logger)
		defer cancel()

		logger.Info("Consuming ledger events", "queue", app.Config.AMQPQueue)
		err := app.Backend.Events.Consume(ctx, func(ctx context.Context, ev *amqp.LedgerEvent) error {
			logger.InfoContext(ctx, "Ledger event",
				"type", ev.Type,
				log.FieldRecordID, ev.ID,
				log.FieldGroupID, ev.GroupID,
				"timestamp", ev.Timestamp)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}
