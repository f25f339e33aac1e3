package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"financas/internal/cli"
	"financas/internal/core"
	"financas/internal/importer"
	"financas/internal/services"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Normalize a bank statement CSV into ledger drafts",
	Long: `Read a bank statement CSV and print the drafts it produces. Nothing is
stored unless --commit is given; then every selected draft is written and
installment rows expand into their series.`,
	Example: `  financas import fatura.csv --card nubank --reference-month 2025-03
  financas import extrato.csv --spender ana --commit`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringP("card", "c", "", "Card id for card statements")
	importCmd.Flags().StringP("reference-month", "m", "", "Invoice month (YYYY-MM) for installment rows")
	importCmd.Flags().String("category", "", "Category applied to every draft")
	importCmd.Flags().String("spender", "", "Member id charged for the drafts")
	importCmd.Flags().String("creator", "", "Member id recorded as creator")
	importCmd.Flags().Bool("commit", false, "Store the selected drafts")
	importCmd.Flags().Bool("generate-past", false, "Also create earlier installments of a series")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	card, _ := flags.GetString("card")
	refMonth, _ := flags.GetString("reference-month")
	category, _ := flags.GetString("category")
	spender, _ := flags.GetString("spender")
	creator, _ := flags.GetString("creator")
	commit, _ := flags.GetBool("commit")
	generatePast, _ := flags.GetBool("generate-past")

	opts := importer.Options{
		CardID:          card,
		Category:        category,
		SpenderMemberID: spender,
		CreatorMemberID: creator,
	}
	if refMonth != "" {
		p, err := core.ParsePeriod(refMonth)
		if err != nil {
			return fmt.Errorf("invalid --reference-month: %w", err)
		}
		opts.ReferenceMonth = p
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open statement: %w", err)
	}
	defer f.Close()

	return withApp(cmd, func(app *cli.App) error {
		res, err := importer.NewNormalizer(core.SystemClock{}, app.Logger).Import(f, opts)
		if err != nil {
			return err
		}
		printDrafts(cmd, res)
		if !commit {
			return nil
		}

		out, err := app.Ledger.CommitDrafts(cmd.Context(), res.Drafts, services.SeriesOptions{
			GenerateFuture:       true,
			GeneratePast:         generatePast,
			UsePurchaseDateLogic: true,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "created %d records, %d drafts unchecked\n", len(out.Created), out.Unchecked)
		return err
	})
}

func printDrafts(cmd *cobra.Command, res importer.Result) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tDATE\tAMOUNT\tDESCRIPTION\tINSTALLMENT\tINVOICE")
	for _, d := range res.Drafts {
		r := d.Record
		inst := ""
		if r.InstallmentCount > 1 {
			inst = fmt.Sprintf("%d/%d", r.InstallmentIndex, r.InstallmentCount)
		}
		invoice := ""
		if r.CardID != "" {
			invoice = r.InvoicePeriod.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", d.Line, r.Date, r.Amount, r.Description, inst, invoice)
	}
	w.Flush()
	for _, s := range res.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "skipped line %d: %s\n", s.Line, s.Reason)
	}
	if res.Duplicates > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d duplicate rows dropped\n", res.Duplicates)
	}
}
