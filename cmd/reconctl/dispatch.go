package main

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

func dispatchCmd() *cobra.Command {
	var bank, from, to string

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Enqueue every PENDING transaction matching the filter",
		Long: `Enqueues one reconciliation job per PENDING transaction.

Without RABBITMQ_URL there is no broker to hold the jobs, so the matching
transactions are reconciled inline before the command returns.

Examples:
  reconctl dispatch
  reconctl dispatch --bank BT --from 2024-03-01 --to 2024-03-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := dispatchFilter(bank, from, to)
			if err != nil {
				return err
			}

			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.InProcessQueue {
				return reconcileInline(cmd, a.Orchestrator, a.Worker, filter)
			}

			res, err := a.Orchestrator.DispatchPending(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("dispatched %d before failing: %w", res.DispatchedCount, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "dispatched %d transactions\n", res.DispatchedCount)

			return nil
		},
	}

	cmd.Flags().StringVar(&bank, "bank", "", "only this bank id")
	cmd.Flags().StringVar(&from, "from", "", "first payment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last payment date (YYYY-MM-DD)")

	return cmd
}

func dispatchFilter(bank, from, to string) (reconciliation.DispatchFilter, error) {
	var filter reconciliation.DispatchFilter

	if bank != "" {
		filter.BankID = &bank
	}

	for _, d := range []struct {
		raw  string
		dst  **time.Time
		name string
	}{{from, &filter.DateFrom, "--from"}, {to, &filter.DateTo, "--to"}} {
		if d.raw == "" {
			continue
		}

		t, err := time.Parse(time.DateOnly, d.raw)
		if err != nil {
			return filter, fmt.Errorf("invalid %s: %w", d.name, err)
		}

		*d.dst = &t
	}

	return filter, nil
}

func reconcileInline(cmd *cobra.Command, o *reconciliation.Orchestrator, w *reconciliation.Worker, filter reconciliation.DispatchFilter) error {
	page, err := o.QueryStatus(cmd.Context(), transaction.ListFilter{
		Status:   new(transaction.StatusPending),
		BankID:   filter.BankID,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	})
	if err != nil {
		return err
	}

	summary := inlineSummary{outcomes: make(map[transaction.Status]int)}

	for _, tx := range page.Transactions {
		status, err := w.Process(cmd.Context(), tx.ID)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", tx.ID, err)
		}

		summary.record(status, err)
	}

	summary.write(cmd.OutOrStdout())

	if summary.failed > 0 {
		return fmt.Errorf("%d of %d transactions failed to reconcile", summary.failed, summary.total)
	}

	return nil
}

// inlineSummary tallies an inline run. Only attempts that stored an outcome
// count as reconciled; the rest are failures whatever status they were left in.
type inlineSummary struct {
	total    int
	failed   int
	outcomes map[transaction.Status]int
}

func (s *inlineSummary) record(status transaction.Status, err error) {
	s.total++

	if err != nil || status == "" {
		s.failed++
		return
	}

	s.outcomes[status]++
}

func (s *inlineSummary) write(w io.Writer) {
	fmt.Fprintf(w, "reconciled %d of %d transactions inline\n", s.total-s.failed, s.total)

	for _, st := range transaction.Statuses {
		if s.outcomes[st] > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", st, s.outcomes[st])
		}
	}

	if s.failed > 0 {
		fmt.Fprintf(w, "  %-10s %d\n", "failed", s.failed)
	}
}

func requeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <transaction-id>...",
		Short: "Reset transactions to PENDING and enqueue them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))

			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid transaction id %q: %w", arg, err)
				}

				ids = append(ids, id)
			}

			a, _, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range ids {
				if err := a.Orchestrator.Requeue(cmd.Context(), id); err != nil {
					return fmt.Errorf("requeueing %s: %w", id, err)
				}

				if a.InProcessQueue {
					if _, err := a.Worker.Process(cmd.Context(), id); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", id)
			}

			return nil
		},
	}
}
