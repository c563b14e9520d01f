// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/config"
	"github.com/libretto/libretto/internal/httpapi"
	"github.com/libretto/libretto/internal/logging"
	"github.com/libretto/libretto/internal/observability"
	"github.com/libretto/libretto/internal/session"
	"github.com/libretto/libretto/internal/store"
	"github.com/libretto/libretto/internal/xdg"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
	cacheTTL        = time.Minute
	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server, the metrics/health endpoint, and the
connections to PostgreSQL and Redis they depend on.`,
		RunE: runServe,
	}

	// Flag names match the config keys so they layer over file and env.
	flags := cmd.Flags()
	flags.String("http_addr", ":8000", "API listen address")
	flags.String("metrics_addr", ":9090", "metrics/health listen address")
	flags.String("log_format", "text", "log format (json or text)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		// Fall back to the XDG config file when one exists.
		if xdgPath, ok := xdg.DefaultConfigFile(); ok {
			path = xdgPath
		}
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.Setup("api", version, cfg.LogFormat, os.Stderr)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := connectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	logger.Info("connected to redis")

	users := store.NewPostgresUserRepository(pool)
	books := store.NewPostgresBookRepository(pool)
	genres := store.NewPostgresGenreRepository(pool)
	registry := session.NewRedisRegistry(rdb)

	svc, err := auth.NewService(users, registry, auth.NewArgon2idHasher(), auth.TokenConfig{
		AccessPrivateKey:  cfg.AccessPrivateKey,
		AccessPublicKey:   cfg.AccessPublicKey,
		RefreshPrivateKey: cfg.RefreshPrivateKey,
		RefreshPublicKey:  cfg.RefreshPublicKey,
		AccessTTL:         cfg.AccessTTL,
		RefreshTTL:        cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil && rdb.Ping(pingCtx).Err() == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, obsErrCh, "observability")

	apiServer, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.HTTPAddr,
		Logger:          logger,
		Auth:            svc,
		Users:           users,
		Books:           books,
		Genres:          genres,
		Registry:        registry,
		Cache:           httpapi.NewCache(rdb, cacheTTL, logger),
		Metrics:         obsServer.Metrics(),
		AccessPublicKey: cfg.AccessPublicKey,
	})
	if err != nil {
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
			logger.Warn("failed to stop observability server during cleanup", "error", stopErr)
		}
		return oops.Code("SERVE_FAILED").With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	cmd.Println("Libretto server started")
	logger.Info("server ready", "http_addr", apiServer.Addr(), "metrics_addr", obsServer.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// connectPostgres opens the pool, retrying with exponential backoff so a
// restart can outlast a database that comes up a few seconds later.
func connectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var connectErr error
		pool, connectErr = store.NewPool(ctx, dsn)
		return retry.RetryableError(connectErr)
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to postgres").Wrap(err)
	}
	return pool, nil
}

// connectRedis opens and pings a Redis client with the same retry policy.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "parse redis url").Wrap(err)
	}
	client := redis.NewClient(opts)

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(client.Ping(ctx).Err())
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("operation", "ping redis").Wrap(err)
	}
	return client, nil
}

// monitorServerErrors cancels the context when a server reports a fatal
// error, so one failed listener brings the whole process down cleanly.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
