package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads a bank transaction row from the scanner.
// Expected column order matches selectTransactionColumns.
func scanTransaction(s scanner) (*transaction.BankTransaction, error) {
	var tx transaction.BankTransaction

	var statusStr string

	var divergences []byte

	var lastError sql.NullString

	if err := s.Scan(
		&tx.ID, &tx.ContractNumber, &tx.Amount, &tx.PaymentDate, &tx.BankID, &tx.BankTransactionID,
		&statusStr, &divergences, &lastError,
		&tx.ReconciledAt, &tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	tx.Status = transaction.Status(statusStr)
	tx.LastError = lastError.String

	if len(divergences) > 0 {
		if err := json.Unmarshal(divergences, &tx.Divergences); err != nil {
			return nil, fmt.Errorf("decoding divergences: %w", err)
		}
	}

	return &tx, nil
}

const selectTransactionColumns = `
	t.id, t.contract_number, t.amount, t.payment_date, t.bank_id, t.bank_transaction_id,
	t.status, t.divergences, t.last_error,
	t.reconciled_at, t.created_at, t.updated_at
`

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.BankTransaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM bank_transactions t
		WHERE t.id = $1`

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

// whereClause renders the filter predicates shared by listing and counting.
func whereClause(filter transaction.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != nil {
		add("t.status = $%d", *filter.Status)
	}

	if filter.BankID != nil {
		add("t.bank_id = $%d", *filter.BankID)
	}

	if filter.DateFrom != nil {
		add("t.payment_date >= $%d", *filter.DateFrom)
	}

	if filter.DateTo != nil {
		add("t.payment_date <= $%d", *filter.DateTo)
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.BankTransaction, error) {
	where, args := whereClause(filter)

	query := `SELECT ` + selectTransactionColumns + `
		FROM bank_transactions t` + where + `
		ORDER BY t.payment_date ASC, t.id ASC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.BankTransaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, nil
}

func (s *Store) CountTransactions(ctx context.Context, filter transaction.ListFilter) (int, error) {
	where, args := whereClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bank_transactions t`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}

	return total, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status transaction.Status, divergences []transaction.Divergence) error {
	var payload []byte

	if len(divergences) > 0 {
		var err error

		payload, err = json.Marshal(divergences)
		if err != nil {
			return fmt.Errorf("encoding divergences: %w", err)
		}
	}

	// A single statement keeps status and divergences atomic.
	query := `
		UPDATE bank_transactions
		SET status = $1,
			divergences = $2,
			last_error = NULL,
			reconciled_at = CASE WHEN $3::boolean THEN NOW() ELSE NULL END,
			updated_at = NOW()
		WHERE id = $4
	`

	res, err := s.db.ExecContext(ctx, query, status, payload, status.Terminal(), id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	return requireRow(res)
}

func (s *Store) RecordError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE bank_transactions
		SET status = $1, divergences = NULL, last_error = $2, reconciled_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`

	res, err := s.db.ExecContext(ctx, query, transaction.StatusError, message, id)
	if err != nil {
		return fmt.Errorf("recording error: %w", err)
	}

	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return transaction.ErrNotFound
	}

	return nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[transaction.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bank_transactions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[transaction.Status]int)

	for rows.Next() {
		var (
			status string
			n      int
		)

		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}

		counts[transaction.Status(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}

	return counts, nil
}

func (s *Store) CountDivergentByBank(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT bank_id, COUNT(*)
		FROM bank_transactions
		WHERE status = $1
		GROUP BY bank_id
	`

	rows, err := s.db.QueryContext(ctx, query, transaction.StatusDivergent)
	if err != nil {
		return nil, fmt.Errorf("counting divergent by bank: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			bank string
			n    int
		)

		if err := rows.Scan(&bank, &n); err != nil {
			return nil, fmt.Errorf("scanning bank count: %w", err)
		}

		counts[bank] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bank counts: %w", err)
	}

	return counts, nil
}

// CreateTransactions inserts all params inside one database transaction.
// Rows that collide on (bank_id, bank_transaction_id) are reported as skipped.
func (s *Store) CreateTransactions(ctx context.Context, params []transaction.CreateParams) ([]*transaction.BankTransaction, []transaction.CreateParams, error) {
	if len(params) == 0 {
		return nil, nil, nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO bank_transactions (contract_number, amount, payment_date, bank_id, bank_transaction_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (bank_id, bank_transaction_id) DO NOTHING
		RETURNING id, created_at
	`

	var (
		created []*transaction.BankTransaction
		skipped []transaction.CreateParams
	)

	for _, p := range params {
		tx := &transaction.BankTransaction{
			ContractNumber:    p.ContractNumber,
			Amount:            p.Amount,
			PaymentDate:       p.PaymentDate,
			BankID:            p.BankID,
			BankTransactionID: p.BankTransactionID,
			Status:            transaction.StatusPending,
		}

		err := dbTx.QueryRowContext(ctx, query,
			tx.ContractNumber,
			tx.Amount,
			tx.PaymentDate,
			tx.BankID,
			tx.BankTransactionID,
			tx.Status,
		).Scan(&tx.ID, &tx.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			skipped = append(skipped, p)
			continue
		}

		if err != nil {
			return nil, nil, fmt.Errorf("creating transaction: %w", err)
		}

		created = append(created, tx)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}

	return created, skipped, nil
}
