package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"finassist/internal/app"
	"finassist/internal/config"
	"finassist/internal/handlers"
	"finassist/internal/logger"
	"finassist/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start ledger")
	}
	defer ledger.Close()

	scheduler := worker.NewSnapshotScheduler(ledger.Ledger, cfg.SnapshotInterval, cfg.RecalcBatchSize, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	handler := handlers.New(cfg, ledger.Ledger, ledger.Accounts, ledger.AuditLogs, ledger.SoftFailer, ledger.Hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("driver", cfg.DatabaseDriver).Msg("finassist API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
