package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/consignado/internal/export"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

func exportCmd() *cobra.Command {
	var (
		status, bank, from, to, out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write divergences and errors as a CSV report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := dispatchFilter(bank, from, to)
			if err != nil {
				return err
			}

			filter := transaction.ListFilter{
				BankID:   window.BankID,
				DateFrom: window.DateFrom,
				DateTo:   window.DateTo,
			}

			if status != "" {
				filter.Status = new(transaction.Status(status))
			}

			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.Exporter.Export(cmd.Context(), filter)
			if err != nil {
				return err
			}

			toFile := out != "" && out != "-"

			var w io.Writer = cmd.OutOrStdout()

			if toFile {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating report: %w", err)
				}
				defer f.Close()

				w = f
			}

			if err := export.WriteCSV(w, items); err != nil {
				return err
			}

			if toFile {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d lines to %s\n", len(items), out)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", string(transaction.StatusDivergent), "only transactions in this status; empty for all")
	cmd.Flags().StringVar(&bank, "bank", "", "only this bank id")
	cmd.Flags().StringVar(&from, "from", "", "first payment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last payment date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&out, "output", "o", "-", "report file, - for stdout")

	return cmd
}
