package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
	"github.com/MrJamesThe3rd/consignado/internal/transaction/memstore"
)

func params(bank, txID string, day int) transaction.CreateParams {
	return transaction.CreateParams{
		ContractNumber:    "CT-1",
		Amount:            decimal.RequireFromString("10.00"),
		PaymentDate:       time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		BankID:            bank,
		BankTransactionID: txID,
	}
}

func TestStore_CreateSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	created, skipped, err := s.CreateTransactions(ctx, []transaction.CreateParams{
		params("BT", "1", 1),
		params("BT", "1", 2),
		params("XP", "1", 3),
	})
	require.NoError(t, err)

	assert.Len(t, created, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].PaymentDate.Day())

	for _, tx := range created {
		assert.Equal(t, transaction.StatusPending, tx.Status)
	}
}

func TestStore_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	_, _, err := s.CreateTransactions(ctx, []transaction.CreateParams{
		params("BT", "3", 3),
		params("BT", "1", 1),
		params("BT", "2", 2),
		params("XP", "9", 2),
	})
	require.NoError(t, err)

	bank := "BT"
	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	txs, err := s.ListTransactions(ctx, transaction.ListFilter{BankID: &bank})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "1", txs[0].BankTransactionID)
	assert.Equal(t, "3", txs[2].BankTransactionID)

	txs, err = s.ListTransactions(ctx, transaction.ListFilter{BankID: &bank, DateFrom: &from, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "3", txs[0].BankTransactionID)

	total, err := s.CountTransactions(ctx, transaction.ListFilter{DateFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	txs, err = s.ListTransactions(ctx, transaction.ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	created, _, err := s.CreateTransactions(ctx, []transaction.CreateParams{params("BT", "1", 1)})
	require.NoError(t, err)

	id := created[0].ID

	require.NoError(t, s.RecordError(ctx, id, "timeout"))

	tx, err := s.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusError, tx.Status)
	assert.Equal(t, "timeout", tx.LastError)
	assert.NotNil(t, tx.ReconciledAt)

	divs := []transaction.Divergence{{Field: transaction.FieldAmount, Description: "mismatch"}}
	require.NoError(t, s.UpdateStatus(ctx, id, transaction.StatusDivergent, divs))

	// Mutating the caller's slice must not leak into the store.
	divs[0].Field = "changed"

	tx, err = s.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusDivergent, tx.Status)
	assert.Empty(t, tx.LastError)
	assert.Equal(t, transaction.FieldAmount, tx.Divergences[0].Field)

	require.NoError(t, s.UpdateStatus(ctx, id, transaction.StatusPending, nil))

	tx, err = s.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, tx.ReconciledAt)
	assert.Empty(t, tx.Divergences)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[transaction.Status]int{transaction.StatusPending: 1}, counts)
}

func TestStore_UnknownID(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	_, err := s.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, transaction.ErrNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, uuid.New(), transaction.StatusProcessing, nil), transaction.ErrNotFound)
	assert.ErrorIs(t, s.RecordError(ctx, uuid.New(), "x"), transaction.ErrNotFound)
}
