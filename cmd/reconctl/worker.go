package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume reconciliation jobs until interrupted",
		Long: `Subscribes to the reconciliation topic on RabbitMQ and processes jobs
until SIGINT or SIGTERM. Run as many workers as needed; the broker hands
each job to one of them at a time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.InProcessQueue {
				return errors.New("worker needs RABBITMQ_URL; the in-process queue only serves the process that enqueued")
			}

			if err := a.Worker.Start(); err != nil {
				return err
			}

			slog.Info("worker started", "prefetch", cfg.RabbitMQ.Prefetch)

			<-cmd.Context().Done()

			slog.Info("worker stopping")

			return nil
		},
	}
}
