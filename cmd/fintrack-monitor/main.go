package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/monitor"
	"fintrack/internal/notify"
	"fintrack/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil, applog.ComponentMonitor, os.Stdout).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentMonitor, os.Stdout)
	logger.Info("Starting fintrack-monitor",
		"backend", cfg.DataBackend,
		"totals_mode", cfg.TotalsMode,
		"poll_interval", cfg.PollInterval.String(),
		applog.FieldOperation, applog.OpStartup)

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	res, err := cli.InitBackend(context.Background(), logger, cfg, func() {
		logger.Warn("API credential expired; set a fresh FINTRACK_API_TOKEN")
	})
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	engine := notify.NewEngine()
	pollerOpts := []monitor.Option{monitor.WithInterval(cfg.PollInterval)}
	deps := apphttp.Deps{
		Engine: engine,
		Logger: logger,
	}

	if res.Obligations != nil {
		sched := scheduler.New(res.Obligations)
		if _, err := sched.Load(startCtx); err != nil {
			logger.Warn("Initial obligation load failed", "error", err)
		}
		pollerOpts = append(pollerOpts, monitor.WithObligations(sched))
		deps.Obligations = sched
	}

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath, cfg.SnapshotRetention)
	if err != nil {
		logger.Error("Failed to initialize snapshot store", "error", err)
		os.Exit(1)
	}
	if repo != nil {
		pollerOpts = append(pollerOpts, monitor.WithSinks(repo))
		deps.History = repo
	}

	var alerts *amqp.Client
	if cfg.AMQPURL != "" {
		alerts, err = amqp.NewClientWithRetry(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
		if err != nil {
			// Publishing is optional; the monitor keeps running without it.
			logger.Error("AMQP unavailable, alerts will not be published", "error", err)
		} else {
			pollerOpts = append(pollerOpts, monitor.WithSinks(amqp.NewAlertSink(alerts)))
		}
	}

	poller := monitor.New(res.Totals, engine, pollerOpts...)
	if repo != nil {
		if snap, ok, err := repo.LatestSnapshot(startCtx); err != nil {
			logger.Warn("Could not restore last snapshot", "error", err)
		} else if ok {
			poller.Seed(snap)
			logger.Info("Restored last snapshot", "updated_at", snap.UpdatedAt)
		}
	}
	deps.Monitor = poller

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		poller.Stop()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if alerts != nil {
			if err := alerts.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if repo != nil {
			if err := repo.Close(); err != nil {
				logger.Error("Snapshot store close error", "error", err)
			}
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	poller.Start(ctx)

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
