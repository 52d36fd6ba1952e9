package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/consignado/internal/database"
	"github.com/MrJamesThe3rd/consignado/internal/importer"
)

func importCmd() *cobra.Command {
	var bank, format string

	cmd := &cobra.Command{
		Use:   "import <statement.csv>",
		Short: "Create PENDING transactions from a bank statement",
		Long: `Parses a ';'-separated bank statement and stores each new row as a
PENDING transaction. Rows already imported for the same bank and transaction
id are skipped. Reconciliation is not dispatched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Importer.Import(cmd.Context(), importer.Format(format), bank, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d, skipped %d\n", len(res.Created), len(res.Skipped))

			for _, p := range res.Skipped {
				fmt.Fprintf(out, "  skipped %s (%s, %s)\n", p.BankTransactionID, p.ContractNumber, p.PaymentDate.Format(time.DateOnly))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&bank, "bank", "b", "", "bank id the statement belongs to")
	cmd.Flags().StringVarP(&format, "format", "f", string(importer.FormatFebraban), "statement format")
	_ = cmd.MarkFlagRequired("bank")

	return cmd
}

func migrateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				files, err := database.MigrationFiles()
				if err != nil {
					return err
				}

				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}

				return nil
			}

			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := database.Migrate(cmd.Context(), a.DB)
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}

			if err != nil {
				return err
			}

			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list embedded migrations without connecting")

	return cmd
}
