// Package memstore keeps bank transactions in process memory. It backs tests
// and single-process runs where PostgreSQL is not available.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

type Store struct {
	mu   sync.RWMutex
	txs  map[uuid.UUID]*transaction.BankTransaction
	keys map[bankKey]uuid.UUID
	now  func() time.Time
}

type bankKey struct {
	bankID string
	txID   string
}

func New() *Store {
	return &Store{
		txs:  make(map[uuid.UUID]*transaction.BankTransaction),
		keys: make(map[bankKey]uuid.UUID),
		now:  time.Now,
	}
}

// clone returns a deep copy so callers never share state with the store.
func clone(tx *transaction.BankTransaction) *transaction.BankTransaction {
	c := *tx
	c.Divergences = slices.Clone(tx.Divergences)

	return &c
}

func matches(tx *transaction.BankTransaction, filter transaction.ListFilter) bool {
	if filter.Status != nil && tx.Status != *filter.Status {
		return false
	}

	if filter.BankID != nil && tx.BankID != *filter.BankID {
		return false
	}

	if filter.DateFrom != nil && tx.PaymentDate.Before(*filter.DateFrom) {
		return false
	}

	if filter.DateTo != nil && tx.PaymentDate.After(*filter.DateTo) {
		return false
	}

	return true
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*transaction.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}

	return clone(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, filter transaction.ListFilter) ([]*transaction.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []*transaction.BankTransaction

	for _, tx := range s.txs {
		if matches(tx, filter) {
			txs = append(txs, clone(tx))
		}
	}

	slices.SortFunc(txs, func(a, b *transaction.BankTransaction) int {
		if c := a.PaymentDate.Compare(b.PaymentDate); c != 0 {
			return c
		}

		return slices.Compare(a.ID[:], b.ID[:])
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(txs) {
			return nil, nil
		}

		txs = txs[filter.Offset:]
	}

	if filter.Limit > 0 && len(txs) > filter.Limit {
		txs = txs[:filter.Limit]
	}

	return txs, nil
}

func (s *Store) CountTransactions(_ context.Context, filter transaction.ListFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0

	for _, tx := range s.txs {
		if matches(tx, filter) {
			total++
		}
	}

	return total, nil
}

func (s *Store) UpdateStatus(_ context.Context, id uuid.UUID, status transaction.Status, divergences []transaction.Divergence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return transaction.ErrNotFound
	}

	now := s.now()
	tx.Status = status
	tx.Divergences = slices.Clone(divergences)
	tx.LastError = ""
	tx.UpdatedAt = &now
	tx.ReconciledAt = nil

	if status.Terminal() {
		tx.ReconciledAt = &now
	}

	return nil
}

func (s *Store) RecordError(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return transaction.ErrNotFound
	}

	now := s.now()
	tx.Status = transaction.StatusError
	tx.Divergences = nil
	tx.LastError = message
	tx.UpdatedAt = &now
	tx.ReconciledAt = &now

	return nil
}

func (s *Store) CountByStatus(_ context.Context) (map[transaction.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[transaction.Status]int)
	for _, tx := range s.txs {
		counts[tx.Status]++
	}

	return counts, nil
}

func (s *Store) CountDivergentByBank(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)

	for _, tx := range s.txs {
		if tx.Status == transaction.StatusDivergent {
			counts[tx.BankID]++
		}
	}

	return counts, nil
}

func (s *Store) CreateTransactions(_ context.Context, params []transaction.CreateParams) ([]*transaction.BankTransaction, []transaction.CreateParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		created []*transaction.BankTransaction
		skipped []transaction.CreateParams
	)

	for _, p := range params {
		key := bankKey{bankID: p.BankID, txID: p.BankTransactionID}
		if _, exists := s.keys[key]; exists {
			skipped = append(skipped, p)
			continue
		}

		tx := &transaction.BankTransaction{
			ID:                uuid.New(),
			ContractNumber:    p.ContractNumber,
			Amount:            p.Amount,
			PaymentDate:       p.PaymentDate,
			BankID:            p.BankID,
			BankTransactionID: p.BankTransactionID,
			Status:            transaction.StatusPending,
			CreatedAt:         s.now(),
		}

		s.txs[tx.ID] = tx
		s.keys[key] = tx.ID
		created = append(created, clone(tx))
	}

	return created, skipped, nil
}
