package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bulkmail/internal/config"
	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/history"
	"github.com/JonMunkholm/bulkmail/internal/logging"
	"github.com/JonMunkholm/bulkmail/internal/mail"
	"github.com/JonMunkholm/bulkmail/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"provider", cfg.Mail.Provider,
		"send_max_concurrent", cfg.Send.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"history_enabled", cfg.Database.Enabled(),
	)

	// Background jobs stop when jobCtx is cancelled.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	transport, err := mail.NewTransport(jobCtx, cfg)
	if err != nil {
		slog.Error("failed to create mail transport", "error", err)
		os.Exit(1)
	}

	limiter := core.NewSendLimiter(cfg.Send.MaxConcurrent, cfg.Send.MaxWaitTime)
	submitterOpts := []core.SubmitterOption{core.WithSendLimiter(limiter)}
	var serverOpts []web.Option

	if cfg.Database.Enabled() {
		pool, err := connectDB(jobCtx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := history.New(pool)
		if err := store.EnsureSchema(jobCtx); err != nil {
			slog.Error("failed to create history schema", "error", err)
			os.Exit(1)
		}
		go store.StartPruner(jobCtx, history.PruneConfig{
			RetentionDays: cfg.History.RetentionDays,
			Interval:      cfg.History.PruneInterval,
		})

		submitterOpts = append(submitterOpts, core.WithRecorder(store))
		serverOpts = append(serverOpts, web.WithHistory(store))
	}

	submitter := core.NewSubmitter(transport, submitterOpts...)
	server := web.NewServer(cfg, submitter, serverOpts...)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then let running sends finish.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for sends to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("sends did not complete in time", "error", err)
			} else {
				slog.Info("all sends completed")
			}
		}

		cancelJobs()
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-jobCtx.Done()
	slog.Info("server stopped")
}

// connectDB opens and pings the history database pool.
func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
