// Package divergence compares a bank transaction with the terms of its contract.
//
// Dates are compared as UTC calendar dates: both sides are converted to UTC and
// truncated to midnight before any arithmetic.
package divergence

import (
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/consignado/internal/contract"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

// DateToleranceDays is the largest distance, in days, accepted between the
// payment date and the expected payment date.
const DateToleranceDays = 1

// Detect returns the divergences between tx and c in a fixed order:
// contract, amount, payment date. A nil contract yields a single contract
// divergence and no further checks.
func Detect(tx *transaction.BankTransaction, c *contract.Contract) []transaction.Divergence {
	if c == nil {
		return []transaction.Divergence{{
			Field:       transaction.FieldContractNumber,
			Expected:    new(tx.ContractNumber),
			Observed:    nil,
			Description: "contract not found",
		}}
	}

	var divergences []transaction.Divergence

	if !tx.Amount.Equal(c.ExpectedInstallmentAmount) {
		expected := c.ExpectedInstallmentAmount.StringFixed(2)
		observed := tx.Amount.StringFixed(2)

		divergences = append(divergences, transaction.Divergence{
			Field:       transaction.FieldAmount,
			Expected:    &expected,
			Observed:    &observed,
			Description: fmt.Sprintf("paid amount %s differs from installment amount %s", observed, expected),
		})
	}

	expectedDate := ExpectedPaymentDate(c)
	paid := calendarDate(tx.PaymentDate)

	if days := daysBetween(expectedDate, paid); days > DateToleranceDays {
		expected := expectedDate.Format(time.DateOnly)
		observed := paid.Format(time.DateOnly)

		divergences = append(divergences, transaction.Divergence{
			Field:       transaction.FieldPaymentDate,
			Expected:    &expected,
			Observed:    &observed,
			Description: fmt.Sprintf("payment date %s is %d days away from expected date %s", observed, days, expected),
		})
	}

	return divergences
}

// ExpectedPaymentDate applies the contract payment day to the month of the
// contract start date, moving one month forward when that date precedes the
// start date. Days past the end of a month are clamped to its last day.
func ExpectedPaymentDate(c *contract.Contract) time.Time {
	start := calendarDate(c.StartDate)

	expected := dayInMonth(start.Year(), start.Month(), c.PaymentDay)
	if expected.Before(start) {
		next := time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		expected = dayInMonth(next.Year(), next.Month(), c.PaymentDay)
	}

	return expected
}

func dayInMonth(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day = min(max(day, 1), last)

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func calendarDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return -d
	}

	return d
}
