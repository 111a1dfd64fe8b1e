package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"queueapp/queue-web/internal/audit"
	"queueapp/queue-web/internal/auth"
	"queueapp/queue-web/internal/config"
	"queueapp/queue-web/internal/httpserver"
	"queueapp/queue-web/internal/metrics"
	"queueapp/queue-web/internal/migrations"
	"queueapp/queue-web/internal/observability"
	"queueapp/queue-web/internal/session"
	"queueapp/queue-web/internal/supabase"
	"queueapp/queue-web/internal/tasks"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	server *httpserver.Server
}

// New wires the server. The task backend follows cfg.StoreBackend.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)

	provider, err := supabase.NewProvider(supabase.Config{URL: cfg.Supabase.URL, AnonKey: cfg.Supabase.AnonKey})
	if err != nil {
		return nil, fmt.Errorf("create identity provider: %w", err)
	}

	var db *sql.DB
	var store tasks.Store
	switch cfg.StoreBackend() {
	case "postgres":
		db, err = OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		store, err = tasks.NewPGStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create postgres task store: %w", err)
		}
	case "memory":
		store = tasks.NewMemoryStore()
	default:
		store = tasks.NewRESTStore(provider)
	}
	logger.Info("task store ready", "backend", cfg.StoreBackend())

	codec := session.NewCodec(cfg.Production())
	observe := func(auth.Outcome) {}
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		observe = m.ObserveAuth
	}
	authn := auth.NewAuthenticator(provider, codec, auth.Options{
		Timeout: cfg.IdentityTimeout,
		Logger:  logger,
		Observe: observe,
	})

	deps := httpserver.Deps{
		Identity: provider,
		Tasks:    tasks.NewService(store),
		Sessions: authn,
		Codec:    codec,
		Audit:    audit.NewLogger(cfg.AuditLogFile),
		Logger:   logger,
	}
	if m != nil {
		deps.Metrics = m
	}
	if db != nil {
		deps.Ready = db.PingContext
	}

	return &App{
		cfg:    cfg,
		log:    logger,
		db:     db,
		server: httpserver.New(cfg.HTTP, deps),
	}, nil
}

// OpenDB opens and pings a Postgres pool.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	svc, err := migrations.New(ctx, db)
	if err != nil {
		return fmt.Errorf("create migration service: %w", err)
	}
	ran, err := svc.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, name := range ran {
		logger.Info("migration applied", "name", name)
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "env", a.cfg.Env)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
