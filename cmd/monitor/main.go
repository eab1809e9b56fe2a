package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/health"
	"github.com/quantaleap/analytics-gateway/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := store.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	repo := store.NewRepository(db)

	tester := health.NewTester(repo, logger, cfg.Monitoring)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle := tester.StartMonitoringAll(ctx, cfg.Monitoring.Interval, func(results []*core.ConnectionTestResult) {
		healthy := 0
		for _, r := range results {
			if r.Success {
				healthy++
			}
		}
		logger.Info("Monitoring cycle complete",
			zap.Int("tenants", len(results)),
			zap.Int("healthy", healthy),
			zap.Int("failing", len(results)-healthy),
		)
		for _, r := range results {
			if !r.Success {
				logger.Warn("Tenant connection unhealthy",
					zap.String("tenant_id", r.TenantID),
					zap.String("database_type", r.DatabaseType),
					zap.String("error", r.Error),
				)
			}
		}
	})

	logger.Info("Connection monitor started", zap.Duration("interval", cfg.Monitoring.Interval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down monitor...")
	handle.Stop()
	<-handle.Done()
	logger.Info("Monitor exited")
}
