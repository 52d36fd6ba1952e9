// Package app assembles the reconciliation components from configuration.
// Both binaries share it so the API and the CLI wire the same stack.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrJamesThe3rd/consignado/internal/cache"
	"github.com/MrJamesThe3rd/consignado/internal/config"
	contractStore "github.com/MrJamesThe3rd/consignado/internal/contract/store"
	"github.com/MrJamesThe3rd/consignado/internal/database"
	"github.com/MrJamesThe3rd/consignado/internal/export"
	"github.com/MrJamesThe3rd/consignado/internal/importer"
	"github.com/MrJamesThe3rd/consignado/internal/queue"
	"github.com/MrJamesThe3rd/consignado/internal/queue/memory"
	"github.com/MrJamesThe3rd/consignado/internal/queue/rabbitmq"
	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
	txStore "github.com/MrJamesThe3rd/consignado/internal/transaction/store"
)

type App struct {
	DB           *sql.DB
	Queue        queue.Queue
	Orchestrator *reconciliation.Orchestrator
	Worker       *reconciliation.Worker
	Importer     *importer.Service
	Exporter     *export.Service

	// InProcessQueue reports that jobs never leave this process, so a worker
	// has to run here for them to be processed.
	InProcessQueue bool

	redis  *redis.Client
	logger *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return nil, err
	}

	a := &App{DB: db, logger: logger}

	if cfg.RabbitMQ.URL != "" {
		a.Queue, err = rabbitmq.New(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Prefetch: cfg.RabbitMQ.Prefetch,
		}, logger.With("component", "rabbitmq"))
		if err != nil {
			db.Close()
			return nil, err
		}
	} else {
		logger.Warn("RABBITMQ_URL not set; using in-process queue")

		a.Queue = memory.New(
			memory.WithConcurrency(cfg.Reconciliation.Concurrency),
			memory.WithBuffer(cfg.Reconciliation.QueueBuffer),
			memory.WithLogger(logger.With("component", "queue")),
		)
		a.InProcessQueue = true
	}

	opts := []reconciliation.OrchestratorOption{
		reconciliation.WithRetryPolicy(queue.RetryPolicy{
			Attempts: cfg.Reconciliation.Attempts,
			Backoff:  cfg.Reconciliation.Backoff,
		}),
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			// The cache is optional; statistics fall back to the store.
			logger.Warn("redis unavailable; statistics cache disabled", "error", err)
		} else {
			a.redis = client
			opts = append(opts, reconciliation.WithStatisticsCache(
				cache.NewStatistics(client, cfg.Redis.Prefix, cfg.Redis.StatsTTL),
			))
		}
	}

	transactions := txStore.New(db)

	a.Orchestrator = reconciliation.NewOrchestrator(transactions, a.Queue, logger.With("component", "orchestrator"), opts...)
	a.Worker = reconciliation.NewWorker(transactions, contractStore.New(db), a.Queue, logger.With("component", "worker"))
	a.Importer = importer.NewService(transactions, logger.With("component", "importer"))
	a.Exporter = export.NewService(transactions)

	return a, nil
}

// Close stops the queue before the database so in-flight jobs can finish their writes.
func (a *App) Close() error {
	var errs []error

	if err := a.Queue.Close(); err != nil {
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.DB.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
