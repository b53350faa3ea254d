package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readinglist/internal/api"
	"readinglist/internal/feed"
	"readinglist/internal/monitoring"
	"readinglist/internal/retitle"
	"readinglist/internal/storage"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, RSS feed and title refresh workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	// Initialize Storage Layer
	pgStore, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pgStore.Close()
	if err := pgStore.EnsureSchema(ctx); err != nil {
		return err
	}

	rdb, err := storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	queue := storage.NewRedisStore(rdb, storage.DefaultPendingTTL)

	// Initialize Monitoring and the title pipeline
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	resolver, err := newResolver(cfg, logger, metrics)
	if err != nil {
		return err
	}
	loc, err := feed.LoadLocation(cfg.FeedTimezone)
	if err != nil {
		return err
	}

	pool := retitle.NewPool(queue, pgStore, resolver, metrics, logger, retitle.Options{
		Workers: cfg.RetitleWorkers,
		Rate:    cfg.RetitleRate,
	})
	pool.Start(ctx)

	server := api.NewServer(cfg, pgStore, queue, resolver, loc, metrics, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		pool.Stop()
		return err
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	pool.Stop()

	logger.Info("server exiting")
	return nil
}
