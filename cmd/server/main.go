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

	"hoiku-portal/internal/config"
	"hoiku-portal/internal/database"
	"hoiku-portal/internal/logging"
	"hoiku-portal/internal/server"
	"hoiku-portal/internal/services"
	"hoiku-portal/internal/storage"
	"hoiku-portal/internal/workflow"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel)
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Init(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("database close error", "error", err)
		}
	}()

	store, err := storage.FromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	var opts []workflow.Option
	if cfg.LockConfirmed {
		opts = append(opts, workflow.LockConfirmed())
	}
	if cfg.ReviewRequiresUpload {
		opts = append(opts, workflow.RequireUpload())
	}
	machine := workflow.New(opts...)

	r, err := server.NewRouter(cfg, server.Deps{
		DB:          db,
		Users:       services.NewUserService(db),
		Templates:   services.NewTemplateService(db, store, cfg.MaxUploadBytes),
		Submissions: services.NewSubmissionService(db, store, machine, cfg.MaxUploadBytes),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		metricsSrv := server.NewMetricsServer(cfg.MetricsAddr)
		go func() {
			slog.Info("metrics listener starting", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics listener failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
