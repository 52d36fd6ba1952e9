package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/consignado/internal/contract"
)

// Store reads contracts owned by the loan-contract subsystem. It never writes.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindByContractNumber(ctx context.Context, number string) (*contract.Contract, error) {
	query := `
		SELECT contract_number, installment_amount, start_date, payment_day
		FROM contracts
		WHERE contract_number = $1
	`

	var c contract.Contract

	err := s.db.QueryRowContext(ctx, query, number).Scan(
		&c.Number, &c.ExpectedInstallmentAmount, &c.StartDate, &c.PaymentDay,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contract.ErrNotFound
		}

		return nil, fmt.Errorf("finding contract: %w", err)
	}

	return &c, nil
}
