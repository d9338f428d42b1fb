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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/dataquality/internal/config"
	"github.com/JonMunkholm/dataquality/internal/logging"
	"github.com/JonMunkholm/dataquality/internal/rules"
	"github.com/JonMunkholm/dataquality/internal/service"
	"github.com/JonMunkholm/dataquality/internal/web"
)

func main() {
	// Load and validate configuration (.env is read by config.Load)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled(),
		"validation_max_rows", cfg.Validation.MaxRows,
		"validation_max_concurrent", cfg.Validation.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	fileRules, err := loadFileRules(cfg.Validation.RulesFile)
	if err != nil {
		slog.Error("failed to load rules file", "path", cfg.Validation.RulesFile, "error", err)
		os.Exit(1)
	}

	opts := []service.Option{service.WithMetrics(service.NewMetrics(reg))}
	var source rules.Source = fileRules

	if cfg.Database.Enabled() {
		pool, err := connect(ctx, &cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := rules.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to migrate rule store", "error", err)
			os.Exit(1)
		}

		seeded, err := store.Seed(ctx, fileRules)
		if err != nil {
			slog.Error("failed to seed rule store", "error", err)
			os.Exit(1)
		}
		if seeded > 0 {
			slog.Info("seeded rule store", "rules", seeded)
		}

		opts = append(opts, service.WithRuleStore(store))
	}

	svc := service.New(source, service.Config{
		MaxRows:       cfg.Validation.MaxRows,
		MaxConcurrent: cfg.Validation.MaxConcurrent,
		MaxWait:       cfg.Validation.MaxWaitTime,
	}, opts...)

	active, err := svc.ListRules(ctx)
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rules loaded", "count", len(active), "editable", svc.RulesEditable())

	server := web.NewServer(svc, cfg, reg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight validations to complete (with timeout)
		if status := svc.Status(); status.Validations.Active > 0 {
			slog.Info("waiting for validations to complete", "active", status.Validations.Active)
			if err := svc.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("validations did not complete in time", "error", err)
			} else {
				slog.Info("all validations completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// loadFileRules reads the configured rules file, or returns the built-in
// rules when none is configured.
func loadFileRules(path string) (rules.Static, error) {
	if path == "" {
		return rules.Defaults(), nil
	}
	return rules.LoadFile(path)
}

func connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return pool, nil
}
