package reconciliation_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/consignado/internal/queue"
	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

// recordingQueue keeps every enqueued job and optionally fails after a number of them.
type recordingQueue struct {
	mu        sync.Mutex
	ids       []uuid.UUID
	policies  []queue.RetryPolicy
	failAfter int
}

func (q *recordingQueue) Enqueue(_ context.Context, topic string, body []byte, policy queue.RetryPolicy) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.failAfter > 0 && len(q.ids) >= q.failAfter {
		return errors.New("broker unavailable")
	}

	var job reconciliation.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return err
	}

	if topic != reconciliation.Topic {
		return errors.New("unexpected topic " + topic)
	}

	q.ids = append(q.ids, job.TransactionID)
	q.policies = append(q.policies, policy)

	return nil
}

func (q *recordingQueue) Subscribe(string, queue.Handler) error { return nil }

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) enqueued() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]uuid.UUID(nil), q.ids...)
}

type stubCache struct {
	stored  *reconciliation.Statistics
	getErr  error
	setErr  error
	setCall int

	invalidateErr  error
	invalidateCall int
}

func (c *stubCache) Get(context.Context) (*reconciliation.Statistics, error) {
	return c.stored, c.getErr
}

func (c *stubCache) Set(_ context.Context, stats *reconciliation.Statistics) error {
	c.setCall++
	if c.setErr != nil {
		return c.setErr
	}

	c.stored = stats

	return nil
}

func (c *stubCache) Invalidate(context.Context) error {
	c.invalidateCall++
	if c.invalidateErr != nil {
		return c.invalidateErr
	}

	c.stored = nil

	return nil
}

func TestOrchestrator_DispatchPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	q := &recordingQueue{}
	bank := "BT"

	first, second := uuid.New(), uuid.New()

	repo.EXPECT().
		ListTransactions(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f transaction.ListFilter) ([]*transaction.BankTransaction, error) {
			require.NotNil(t, f.Status)
			assert.Equal(t, transaction.StatusPending, *f.Status)
			require.NotNil(t, f.BankID)
			assert.Equal(t, bank, *f.BankID)
			assert.Zero(t, f.Limit)

			return []*transaction.BankTransaction{{ID: first}, {ID: second}}, nil
		})

	o := reconciliation.NewOrchestrator(repo, q, discardLogger)

	res, err := o.DispatchPending(context.Background(), reconciliation.DispatchFilter{BankID: &bank})
	require.NoError(t, err)

	assert.Equal(t, 2, res.DispatchedCount)
	assert.Equal(t, []uuid.UUID{first, second}, q.enqueued())
	assert.Equal(t, queue.DefaultRetryPolicy(), q.policies[0])
}

func TestOrchestrator_DispatchPending_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	q := &recordingQueue{failAfter: 1}

	repo.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return([]*transaction.BankTransaction{
		{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()},
	}, nil)

	o := reconciliation.NewOrchestrator(repo, q, discardLogger)

	res, err := o.DispatchPending(context.Background(), reconciliation.DispatchFilter{})
	require.Error(t, err)
	assert.Equal(t, 1, res.DispatchedCount)
}

func TestOrchestrator_DispatchPending_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	q := &recordingQueue{}

	repo.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	o := reconciliation.NewOrchestrator(repo, q, discardLogger)

	res, err := o.DispatchPending(context.Background(), reconciliation.DispatchFilter{})
	require.Error(t, err)
	assert.Zero(t, res.DispatchedCount)
	assert.Empty(t, q.enqueued())
}

func TestOrchestrator_QueryStatus(t *testing.T) {
	t.Run("InvalidStatus", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		o := reconciliation.NewOrchestrator(transaction.NewMockRepository(ctrl), &recordingQueue{}, discardLogger)

		_, err := o.QueryStatus(context.Background(), transaction.ListFilter{Status: new(transaction.Status("DONE"))})
		assert.ErrorIs(t, err, reconciliation.ErrInvalidStatus)
	})

	t.Run("PageAndTotal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := transaction.NewMockRepository(ctrl)
		filter := transaction.ListFilter{Status: new(transaction.StatusDivergent), Limit: 1}
		page := []*transaction.BankTransaction{{ID: uuid.New(), Status: transaction.StatusDivergent}}

		repo.EXPECT().ListTransactions(gomock.Any(), filter).Return(page, nil)
		repo.EXPECT().CountTransactions(gomock.Any(), filter).Return(3, nil)

		o := reconciliation.NewOrchestrator(repo, &recordingQueue{}, discardLogger)

		got, err := o.QueryStatus(context.Background(), filter)
		require.NoError(t, err)
		assert.Equal(t, page, got.Transactions)
		assert.Equal(t, 3, got.Total)
	})
}

func TestOrchestrator_QueryDivergences(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	missing, reconciled := uuid.New(), uuid.New()

	repo.EXPECT().GetTransaction(gomock.Any(), missing).Return(nil, transaction.ErrNotFound)
	repo.EXPECT().GetTransaction(gomock.Any(), reconciled).Return(&transaction.BankTransaction{
		ID:     reconciled,
		Status: transaction.StatusReconciled,
	}, nil)

	o := reconciliation.NewOrchestrator(repo, &recordingQueue{}, discardLogger)

	_, err := o.QueryDivergences(context.Background(), missing)
	assert.ErrorIs(t, err, transaction.ErrNotFound)

	report, err := o.QueryDivergences(context.Background(), reconciled)
	require.NoError(t, err)
	assert.NotNil(t, report.Divergences)
	assert.Empty(t, report.Divergences)
}

func TestOrchestrator_Requeue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	q := &recordingQueue{}
	id := uuid.New()

	gomock.InOrder(
		repo.EXPECT().GetTransaction(gomock.Any(), id).Return(&transaction.BankTransaction{ID: id, Status: transaction.StatusError}, nil),
		repo.EXPECT().UpdateStatus(gomock.Any(), id, transaction.StatusPending, gomock.Nil()).Return(nil),
	)

	o := reconciliation.NewOrchestrator(repo, q, discardLogger)

	require.NoError(t, o.Requeue(context.Background(), id))
	assert.Equal(t, []uuid.UUID{id}, q.enqueued())
}

func TestOrchestrator_Requeue_DropsCachedStatistics(t *testing.T) {
	tests := []struct {
		name  string
		cache *stubCache
	}{
		{
			name:  "SnapshotCleared",
			cache: &stubCache{stored: &reconciliation.Statistics{TotalTransactions: 7}},
		},
		{
			name:  "InvalidationFailureIgnored",
			cache: &stubCache{stored: &reconciliation.Statistics{TotalTransactions: 7}, invalidateErr: errors.New("redis down")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := transaction.NewMockRepository(ctrl)
			q := &recordingQueue{}
			id := uuid.New()

			repo.EXPECT().GetTransaction(gomock.Any(), id).Return(&transaction.BankTransaction{ID: id, Status: transaction.StatusDivergent}, nil)
			repo.EXPECT().UpdateStatus(gomock.Any(), id, transaction.StatusPending, gomock.Nil()).Return(nil)

			o := reconciliation.NewOrchestrator(repo, q, discardLogger,
				reconciliation.WithStatisticsCache(tt.cache))

			require.NoError(t, o.Requeue(context.Background(), id))
			assert.Equal(t, 1, tt.cache.invalidateCall)
			assert.Equal(t, []uuid.UUID{id}, q.enqueued())

			if tt.cache.invalidateErr == nil {
				assert.Nil(t, tt.cache.stored)
			}
		})
	}
}

func TestOrchestrator_Requeue_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := transaction.NewMockRepository(ctrl)
	q := &recordingQueue{}
	id := uuid.New()

	repo.EXPECT().GetTransaction(gomock.Any(), id).Return(nil, transaction.ErrNotFound)

	o := reconciliation.NewOrchestrator(repo, q, discardLogger)

	assert.ErrorIs(t, o.Requeue(context.Background(), id), transaction.ErrNotFound)
	assert.Empty(t, q.enqueued())
}

func TestOrchestrator_Statistics(t *testing.T) {
	t.Run("FillsEveryStatus", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := transaction.NewMockRepository(ctrl)
		repo.EXPECT().CountByStatus(gomock.Any()).Return(map[transaction.Status]int{
			transaction.StatusReconciled: 3,
			transaction.StatusDivergent:  1,
		}, nil)
		repo.EXPECT().CountDivergentByBank(gomock.Any()).Return(map[string]int{"BT": 1}, nil)

		o := reconciliation.NewOrchestrator(repo, &recordingQueue{}, discardLogger)

		stats, err := o.Statistics(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 4, stats.TotalTransactions)
		assert.Len(t, stats.CountsByStatus, len(transaction.Statuses))
		assert.Equal(t, 0, stats.CountsByStatus[transaction.StatusPending])
		assert.Equal(t, 3, stats.CountsByStatus[transaction.StatusReconciled])
		assert.Equal(t, map[string]int{"BT": 1}, stats.DivergenceCountsByBank)
	})

	t.Run("ServedFromCache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		cached := &reconciliation.Statistics{TotalTransactions: 9}
		cache := &stubCache{stored: cached}

		o := reconciliation.NewOrchestrator(transaction.NewMockRepository(ctrl), &recordingQueue{}, discardLogger,
			reconciliation.WithStatisticsCache(cache))

		stats, err := o.Statistics(context.Background())
		require.NoError(t, err)
		assert.Same(t, cached, stats)
		assert.Zero(t, cache.setCall)
	})

	t.Run("CacheFailuresAreIgnored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := transaction.NewMockRepository(ctrl)
		repo.EXPECT().CountByStatus(gomock.Any()).Return(map[transaction.Status]int{}, nil)
		repo.EXPECT().CountDivergentByBank(gomock.Any()).Return(nil, nil)

		cache := &stubCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}

		o := reconciliation.NewOrchestrator(repo, &recordingQueue{}, discardLogger,
			reconciliation.WithStatisticsCache(cache))

		stats, err := o.Statistics(context.Background())
		require.NoError(t, err)
		assert.Zero(t, stats.TotalTransactions)
		assert.NotNil(t, stats.DivergenceCountsByBank)
		assert.Equal(t, 1, cache.setCall)
	})
}
