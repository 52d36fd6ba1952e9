package view

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

const dbTimeout = 5 * time.Second

// FormatAmount renders an amount with two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}

	return *s
}

var statusColors = map[transaction.Status]string{
	transaction.StatusPending:    "244",
	transaction.StatusProcessing: "33",
	transaction.StatusReconciled: "46",
	transaction.StatusDivergent:  "214",
	transaction.StatusError:      "196",
}
