package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

// Header is the first row of an exported report.
var Header = []string{
	"bank_id", "bank_transaction_id", "contract_number", "amount", "payment_date",
	"status", "field", "expected", "observed", "description",
}

// Item is one report line: a transaction and, when it diverged, one of its divergences.
type Item struct {
	Transaction *transaction.BankTransaction
	Divergence  *transaction.Divergence
}

// Service exports reconciliation outcomes for review outside the system.
type Service struct {
	transactions transaction.Repository
}

func NewService(transactions transaction.Repository) *Service {
	return &Service{transactions: transactions}
}

// Export lists the transactions matching the filter and flattens them into one
// item per divergence. Transactions without divergences produce a single item.
func (s *Service) Export(ctx context.Context, filter transaction.ListFilter) ([]Item, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", *filter.Status)
	}

	transactions, err := s.transactions.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	items := make([]Item, 0, len(transactions))

	for _, t := range transactions {
		if len(t.Divergences) == 0 {
			items = append(items, Item{Transaction: t})
			continue
		}

		for i := range t.Divergences {
			items = append(items, Item{Transaction: t, Divergence: &t.Divergences[i]})
		}
	}

	return items, nil
}

// WriteCSV writes the items as a semicolon separated report, the layout the
// banks' own files use.
func WriteCSV(w io.Writer, items []Item) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, item := range items {
		tx := item.Transaction

		row := []string{
			tx.BankID,
			tx.BankTransactionID,
			tx.ContractNumber,
			tx.Amount.StringFixed(2),
			tx.PaymentDate.Format("2006-01-02"),
			string(tx.Status),
			"", "", "", tx.LastError,
		}

		if d := item.Divergence; d != nil {
			row[6] = d.Field
			row[7] = deref(d.Expected)
			row[8] = deref(d.Observed)
			row[9] = d.Description
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing transaction %s: %w", tx.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
