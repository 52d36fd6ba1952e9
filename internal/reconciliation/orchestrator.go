package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/consignado/internal/queue"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

var ErrInvalidStatus = errors.New("invalid status")

// StatisticsCache holds a recent Statistics snapshot. Get returns nil on a miss.
type StatisticsCache interface {
	Get(ctx context.Context) (*Statistics, error)
	Set(ctx context.Context, stats *Statistics) error
	Invalidate(ctx context.Context) error
}

type DispatchFilter struct {
	BankID   *string
	DateFrom *time.Time
	DateTo   *time.Time
}

type DispatchResult struct {
	DispatchedCount int
}

type StatusPage struct {
	Transactions []*transaction.BankTransaction
	Total        int
}

type DivergenceReport struct {
	Transaction *transaction.BankTransaction
	Divergences []transaction.Divergence
}

type Statistics struct {
	TotalTransactions      int                        `json:"total_transactions"`
	CountsByStatus         map[transaction.Status]int `json:"counts_by_status"`
	DivergenceCountsByBank map[string]int             `json:"divergence_counts_by_bank"`
}

type OrchestratorOption func(*Orchestrator)

func WithRetryPolicy(policy queue.RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

func WithStatisticsCache(cache StatisticsCache) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// Orchestrator enqueues reconciliation jobs and answers queries from the store.
// It never changes a transaction's status except through Requeue.
type Orchestrator struct {
	transactions transaction.Repository
	queue        queue.Queue
	policy       queue.RetryPolicy
	cache        StatisticsCache
	logger       *slog.Logger
}

func NewOrchestrator(transactions transaction.Repository, q queue.Queue, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		transactions: transactions,
		queue:        q,
		policy:       queue.DefaultRetryPolicy(),
		logger:       logger,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// DispatchPending enqueues one job per PENDING transaction matching the filter.
// On failure the returned count still reports the jobs already enqueued.
func (o *Orchestrator) DispatchPending(ctx context.Context, filter DispatchFilter) (DispatchResult, error) {
	pending := transaction.StatusPending

	// The whole selection is read before enqueueing: workers move rows out of
	// PENDING concurrently, which would shift any offset-based paging.
	txs, err := o.transactions.ListTransactions(ctx, transaction.ListFilter{
		Status:   &pending,
		BankID:   filter.BankID,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("listing pending transactions: %w", err)
	}

	for i, tx := range txs {
		if err := o.enqueue(ctx, tx.ID); err != nil {
			return DispatchResult{DispatchedCount: i}, fmt.Errorf("enqueueing transaction %s: %w", tx.ID, err)
		}
	}

	o.logger.Info("dispatched pending transactions", "count", len(txs))

	return DispatchResult{DispatchedCount: len(txs)}, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, id uuid.UUID) error {
	body, err := encodeJob(id)
	if err != nil {
		return err
	}

	return o.queue.Enqueue(ctx, Topic, body, o.policy)
}

// Requeue resets a transaction to PENDING and dispatches it again.
func (o *Orchestrator) Requeue(ctx context.Context, id uuid.UUID) error {
	if _, err := o.transactions.GetTransaction(ctx, id); err != nil {
		return err
	}

	if err := o.transactions.UpdateStatus(ctx, id, transaction.StatusPending, nil); err != nil {
		return fmt.Errorf("resetting transaction %s: %w", id, err)
	}

	if o.cache != nil {
		if err := o.cache.Invalidate(ctx); err != nil {
			o.logger.Warn("statistics cache invalidation failed", "error", err)
		}
	}

	if err := o.enqueue(ctx, id); err != nil {
		return fmt.Errorf("enqueueing transaction %s: %w", id, err)
	}

	o.logger.Info("requeued transaction", "transaction_id", id)

	return nil
}

func (o *Orchestrator) QueryStatus(ctx context.Context, filter transaction.ListFilter) (*StatusPage, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *filter.Status)
	}

	txs, err := o.transactions.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	total, err := o.transactions.CountTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("counting transactions: %w", err)
	}

	return &StatusPage{Transactions: txs, Total: total}, nil
}

// QueryDivergences returns transaction.ErrNotFound for unknown ids.
func (o *Orchestrator) QueryDivergences(ctx context.Context, id uuid.UUID) (*DivergenceReport, error) {
	tx, err := o.transactions.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	divergences := tx.Divergences
	if divergences == nil {
		divergences = []transaction.Divergence{}
	}

	return &DivergenceReport{Transaction: tx, Divergences: divergences}, nil
}

func (o *Orchestrator) Statistics(ctx context.Context) (*Statistics, error) {
	if o.cache != nil {
		cached, err := o.cache.Get(ctx)
		if err != nil {
			o.logger.Warn("statistics cache read failed", "error", err)
		}

		if cached != nil {
			return cached, nil
		}
	}

	byStatus, err := o.transactions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}

	byBank, err := o.transactions.CountDivergentByBank(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting divergent by bank: %w", err)
	}

	if byBank == nil {
		byBank = map[string]int{}
	}

	stats := &Statistics{
		CountsByStatus:         make(map[transaction.Status]int, len(transaction.Statuses)),
		DivergenceCountsByBank: byBank,
	}

	for _, s := range transaction.Statuses {
		stats.CountsByStatus[s] = byStatus[s]
		stats.TotalTransactions += byStatus[s]
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, stats); err != nil {
			o.logger.Warn("statistics cache write failed", "error", err)
		}
	}

	return stats, nil
}
