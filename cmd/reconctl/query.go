package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func listCmd() *cobra.Command {
	var (
		status, bank string
		limit        int
		offset       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := transaction.ListFilter{Limit: limit, Offset: offset}

			if status != "" {
				filter.Status = new(transaction.Status(status))
			}

			if bank != "" {
				filter.BankID = &bank
			}

			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := a.Orchestrator.QueryStatus(cmd.Context(), filter)
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}

					return lipgloss.NewStyle().Padding(0, 1)
				}).
				Headers("ID", "BANK", "CONTRACT", "AMOUNT", "PAID", "STATUS")

			for _, tx := range page.Transactions {
				t.Row(
					tx.ID.String(),
					tx.BankID,
					tx.ContractNumber,
					tx.Amount.StringFixed(2),
					tx.PaymentDate.Format(time.DateOnly),
					string(tx.Status),
				)
			}

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(page.Transactions), page.Total)

			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "PENDING, PROCESSING, RECONCILED, DIVERGENT or ERROR")
	cmd.Flags().StringVar(&bank, "bank", "", "only this bank id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")

	return cmd
}

func divergencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "divergences <transaction-id>",
		Short: "Show the divergences recorded for a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id: %w", err)
			}

			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Orchestrator.QueryDivergences(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s  %s\n", report.Transaction.ID, report.Transaction.Status, report.Transaction.ContractNumber)

			if report.Transaction.LastError != "" {
				fmt.Fprintf(out, "last error: %s\n", report.Transaction.LastError)
			}

			for _, d := range report.Divergences {
				fmt.Fprintf(out, "- %s: %s (expected %s, observed %s)\n", d.Field, d.Description, deref(d.Expected), deref(d.Observed))
			}

			return nil
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}

	return *s
}

func statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reconciliation statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Orchestrator.Statistics(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(stats)
			}

			t := table.New().Border(lipgloss.NormalBorder()).Headers("STATUS", "COUNT")
			for _, s := range transaction.Statuses {
				t.Row(string(s), strconv.Itoa(stats.CountsByStatus[s]))
			}

			t.Row("TOTAL", strconv.Itoa(stats.TotalTransactions))
			fmt.Fprintln(out, t.Render())

			if len(stats.DivergenceCountsByBank) > 0 {
				banks := table.New().Border(lipgloss.NormalBorder()).Headers("BANK", "DIVERGENT")
				for bank, n := range stats.DivergenceCountsByBank {
					banks.Row(bank, strconv.Itoa(n))
				}

				fmt.Fprintln(out, banks.Render())
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")

	return cmd
}
