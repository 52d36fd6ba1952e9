package contract

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("contract not found")

// Contract carries the terms a payment is reconciled against.
// It is owned by the loan-contract subsystem and is read-only here.
type Contract struct {
	Number                    string
	ExpectedInstallmentAmount decimal.Decimal
	StartDate                 time.Time
	PaymentDay                int // expected day-of-month, 1-31
}

//go:generate mockgen -source=contract.go -destination=lookup_mock.go -package=contract
type Lookup interface {
	// FindByContractNumber returns ErrNotFound when no contract has the given number.
	FindByContractNumber(ctx context.Context, number string) (*Contract, error)
}
