package transaction

import (
	"context"

	"github.com/google/uuid"
)

//go:generate mockgen -source=repository.go -destination=repository_mock.go -package=transaction
type Repository interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*BankTransaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*BankTransaction, error)
	CountTransactions(ctx context.Context, filter ListFilter) (int, error)

	// UpdateStatus overwrites the status and divergences of a transaction.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, divergences []Divergence) error
	// RecordError moves a transaction to StatusError and keeps the failure message.
	RecordError(ctx context.Context, id uuid.UUID, message string) error

	CountByStatus(ctx context.Context) (map[Status]int, error)
	CountDivergentByBank(ctx context.Context) (map[string]int, error)

	// CreateTransactions inserts new PENDING transactions. Transactions already known
	// by (BankID, BankTransactionID) are skipped and returned separately.
	CreateTransactions(ctx context.Context, params []CreateParams) (created []*BankTransaction, skipped []CreateParams, err error)
}
