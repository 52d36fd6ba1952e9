package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the reconciliation state of a bank transaction.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusReconciled Status = "RECONCILED"
	StatusDivergent  Status = "DIVERGENT"
	StatusError      Status = "ERROR"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusReconciled,
	StatusDivergent,
	StatusError,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReconciled, StatusDivergent, StatusError:
		return true
	}

	return false
}

// Terminal reports whether no further automatic transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusReconciled || s == StatusDivergent || s == StatusError
}

// Field names used by divergences.
const (
	FieldContractNumber = "contractNumber"
	FieldAmount         = "amount"
	FieldPaymentDate    = "paymentDate"
)

// Divergence is a mismatch between the expected and observed value of a field.
// Expected and Observed are nil when the value does not exist.
type Divergence struct {
	Field       string  `json:"field"`
	Expected    *string `json:"expected"`
	Observed    *string `json:"observed"`
	Description string  `json:"description"`
}

// BankTransaction is one payment event reported by a bank.
type BankTransaction struct {
	ID                uuid.UUID
	ContractNumber    string
	Amount            decimal.Decimal
	PaymentDate       time.Time
	BankID            string
	BankTransactionID string
	Status            Status
	Divergences       []Divergence
	LastError         string
	ReconciledAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// ListFilter narrows a listing. Nil fields do not filter. A zero Limit means no limit.
type ListFilter struct {
	Status   *Status
	BankID   *string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// CreateParams holds the fields of a transaction reported by a bank.
type CreateParams struct {
	ContractNumber    string
	Amount            decimal.Decimal
	PaymentDate       time.Time
	BankID            string
	BankTransactionID string
}
