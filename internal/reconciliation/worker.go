package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/consignado/internal/contract"
	"github.com/MrJamesThe3rd/consignado/internal/divergence"
	"github.com/MrJamesThe3rd/consignado/internal/queue"
	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

// Worker drives one transaction at a time through the reconciliation state machine.
type Worker struct {
	transactions transaction.Repository
	contracts    contract.Lookup
	queue        queue.Queue
	logger       *slog.Logger
}

func NewWorker(transactions transaction.Repository, contracts contract.Lookup, q queue.Queue, logger *slog.Logger) *Worker {
	return &Worker{
		transactions: transactions,
		contracts:    contracts,
		queue:        q,
		logger:       logger,
	}
}

// Start subscribes the worker to the reconciliation topic.
func (w *Worker) Start() error {
	return w.queue.Subscribe(Topic, w.Handle)
}

// Handle adapts a queue delivery to Process. Undecodable payloads and unknown
// transactions fail permanently; every other error is left to the retry policy.
func (w *Worker) Handle(ctx context.Context, d queue.Delivery) error {
	job, err := decodeJob(d.Body)
	if err != nil {
		return queue.Permanent(err)
	}

	log := w.logger.With("transaction_id", job.TransactionID, "attempt", d.Attempt)

	status, err := w.Process(ctx, job.TransactionID)
	if err != nil {
		log.Error("reconciliation failed", "error", err)
		return err
	}

	log.Info("transaction reconciled", "status", status)

	return nil
}

// Process reconciles a single transaction and returns the status it was left in.
// Every step reads current data and the final write overwrites the previous
// outcome, so running it again for the same id converges to the same result.
func (w *Worker) Process(ctx context.Context, id uuid.UUID) (transaction.Status, error) {
	tx, err := w.transactions.GetTransaction(ctx, id)
	if errors.Is(err, transaction.ErrNotFound) {
		return "", queue.Permanent(fmt.Errorf("loading transaction %s: %w", id, err))
	}

	if err != nil {
		return w.fail(ctx, id, fmt.Errorf("loading transaction: %w", err))
	}

	// Marks the transaction as in flight before any lookup.
	if err := w.transactions.UpdateStatus(ctx, id, transaction.StatusProcessing, nil); err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			return "", queue.Permanent(fmt.Errorf("marking transaction %s: %w", id, err))
		}

		return w.fail(ctx, id, fmt.Errorf("marking processing: %w", err))
	}

	c, err := w.contracts.FindByContractNumber(ctx, tx.ContractNumber)
	if err != nil && !errors.Is(err, contract.ErrNotFound) {
		return w.fail(ctx, id, fmt.Errorf("looking up contract %s: %w", tx.ContractNumber, err))
	}

	if errors.Is(err, contract.ErrNotFound) {
		c = nil
	}

	divergences := divergence.Detect(tx, c)

	status := transaction.StatusReconciled
	if len(divergences) > 0 {
		status = transaction.StatusDivergent
	}

	if err := w.transactions.UpdateStatus(ctx, id, status, divergences); err != nil {
		return w.fail(ctx, id, fmt.Errorf("storing outcome: %w", err))
	}

	return status, nil
}

// fail records the error on the transaction and hands the cause back so the
// queue can retry it.
func (w *Worker) fail(ctx context.Context, id uuid.UUID, cause error) (transaction.Status, error) {
	if err := w.transactions.RecordError(ctx, id, cause.Error()); err != nil {
		w.logger.Error("failed to record reconciliation error", "transaction_id", id, "error", err, "cause", cause)
	}

	return transaction.StatusError, cause
}
