package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/consignado/internal/app"
	"github.com/MrJamesThe3rd/consignado/internal/config"
	consignadoHttp "github.com/MrJamesThe3rd/consignado/internal/http"
	importHandler "github.com/MrJamesThe3rd/consignado/internal/http/importcsv"
	reconHandler "github.com/MrJamesThe3rd/consignado/internal/http/reconciliation"
	"github.com/MrJamesThe3rd/consignado/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Jobs on the in-process queue are only visible to this process.
	if a.InProcessQueue {
		if err := a.Worker.Start(); err != nil {
			slog.Error("failed to start worker", "error", err)
			os.Exit(1)
		}
	}

	if cfg.Scheduler.DispatchCron != "" {
		sched := scheduler.New(a.Orchestrator, cfg.Scheduler.DispatchCron, cfg.Scheduler.DispatchTimeout, logger.With("component", "scheduler"))
		if err := sched.Start(); err != nil {
			slog.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}

		defer func() { <-sched.Stop().Done() }()
	}

	router := consignadoHttp.New(
		reconHandler.NewHandler(a.Orchestrator),
		importHandler.NewHandler(a.Importer),
		cfg.Server.Timeout,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
