// Command analytics-worker runs the periodic profile-build and
// drift-detection sweeps and dispatches alerts for newly detected drift. It
// exposes no ingest/query HTTP surface, only health and metrics.
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

	"github.com/marcus-qen/agentobservatory/internal/alert"
	"github.com/marcus-qen/agentobservatory/internal/config"
	"github.com/marcus-qen/agentobservatory/internal/dbpool"
	"github.com/marcus-qen/agentobservatory/internal/dbschema"
	"github.com/marcus-qen/agentobservatory/internal/drift"
	"github.com/marcus-qen/agentobservatory/internal/httpapi"
	"github.com/marcus-qen/agentobservatory/internal/jobs"
	"github.com/marcus-qen/agentobservatory/internal/metrics"
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
		shutdown, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, "analytics-worker", version)
		if err != nil {
			logger.Fatal("init trace provider", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	driftCfg, err := drift.LoadConfig(cfg.DriftConfigPath)
	if err != nil {
		logger.Fatal("load drift config", zap.Error(err))
	}

	runs := store.New(pool, logger)

	alertOpts := []alert.Option{alert.WithDeliveryObserver(metrics.AlertObserver{})}
	if cfg.WebhookURL != "" {
		alertOpts = append(alertOpts, alert.WithWebhook(alert.WebhookSink{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret}))
	}
	if cfg.SlackWebhookURL != "" {
		alertOpts = append(alertOpts, alert.WithSlackWebhook(cfg.SlackWebhookURL))
	}
	if cfg.PagerDutyRoutingKey != "" {
		alertOpts = append(alertOpts, alert.WithPagerDuty(cfg.PagerDutyRoutingKey))
	}
	emitter := alert.New(runs, logger, alertOpts...)

	engine := drift.New(runs, driftCfg, logger)
	scheduler := jobs.New(runs, engine, emitter, driftCfg, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal("start scheduler", zap.Error(err))
	}

	mux := httpapi.NewWorkerMux(runs, version)
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpapi.WithMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting analytics-worker", zap.String("addr", cfg.ListenAddr), zap.String("version", version))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
