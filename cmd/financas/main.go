package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"financas/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "financas",
	Short: "Household ledger with card invoices and installment series",
	Long: `financas keeps a household ledger of income and expenses. Card purchases
are assigned to invoices by the card's closing day, installment purchases
become series of linked records, and recurring templates are materialized
once per period.

Configuration comes from the environment (and a .env file when present).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp bootstraps the shared collaborators for one command run.
func withApp(cmd *cobra.Command, fn func(app *cli.App) error) error {
	app, err := cli.Bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
