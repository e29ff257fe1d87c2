// Command query-service runs the read-only Query API: run/step/failure/stats
// lookups plus the behavior-analytics (profile, baseline, drift) surface.
// It never mutates schema, only verifies ingest-service already applied it.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/marcus-qen/agentobservatory/internal/baseline"
	"github.com/marcus-qen/agentobservatory/internal/config"
	"github.com/marcus-qen/agentobservatory/internal/dbpool"
	"github.com/marcus-qen/agentobservatory/internal/dbschema"
	"github.com/marcus-qen/agentobservatory/internal/httpapi"
	"github.com/marcus-qen/agentobservatory/internal/query"
	"github.com/marcus-qen/agentobservatory/internal/store"
	"github.com/marcus-qen/agentobservatory/internal/telemetry"
)

var version = "dev"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("OBSERVATORY_CONFIG_FILE"))
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	checkDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open schema-check connection", zap.Error(err))
	}
	defer checkDB.Close()
	if err := dbschema.CheckVersion(ctx, checkDB, len(dbschema.Migrations)); err != nil {
		logger.Fatal("schema version check failed", zap.Error(err))
	}

	pool, err := dbpool.New(ctx, cfg.DatabaseURL, dbpool.Options{MinConns: cfg.PoolMinConns, MaxConns: cfg.PoolMaxConns})
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, "query-service", version)
		if err != nil {
			logger.Fatal("init trace provider", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	runs := store.New(pool, logger)
	service := query.New(runs)
	baselines := baseline.New(runs)
	mux := httpapi.NewQueryMux(service, runs, baselines, version)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpapi.WithMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting query-service", zap.String("addr", cfg.ListenAddr), zap.String("version", version))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
