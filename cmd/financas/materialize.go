package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"financas/internal/cli"
	"financas/internal/core"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Create this period's instances of the recurring templates",
	Long: `Materialize every active recurring template for one period. Running it
again for the same period creates nothing new.`,
	Args: cobra.NoArgs,
	RunE: runMaterialize,
}

func init() {
	materializeCmd.Flags().StringP("period", "p", "", "Period to materialize (YYYY-MM, default current month)")
	rootCmd.AddCommand(materializeCmd)
}

func runMaterialize(cmd *cobra.Command, _ []string) error {
	raw, _ := cmd.Flags().GetString("period")
	period := core.PeriodOf(core.SystemClock{}.Now())
	if raw != "" {
		p, err := core.ParsePeriod(raw)
		if err != nil {
			return fmt.Errorf("invalid --period: %w", err)
		}
		period = p
	}

	return withApp(cmd, func(app *cli.App) error {
		ctx := cmd.Context()
		templates, err := app.Backend.Store.ListTemplates(ctx, true)
		if err != nil {
			return err
		}
		res, err := app.Materializer.Materialize(ctx, templates, period)
		for _, r := range res.Created {
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s %s %s\n", r.ID, r.Date, r.Amount, r.Description)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "period %s: %d created, %d already present, %d not due\n",
			period, len(res.Created), res.Existed, res.NotDue)
		return err
	})
}
