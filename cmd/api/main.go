package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/api"
	"github.com/quantaleap/analytics-gateway/internal/api/handlers"
	"github.com/quantaleap/analytics-gateway/internal/cache"
	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/health"
	"github.com/quantaleap/analytics-gateway/internal/query"
	"github.com/quantaleap/analytics-gateway/internal/queue"
	"github.com/quantaleap/analytics-gateway/internal/store"
	"github.com/quantaleap/analytics-gateway/pkg/engine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Server.Mode)
	defer logger.Sync()

	// Tenant connection store
	db, err := store.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	repo := store.NewRepository(db)

	// Cache
	cacheStore := cache.NewRedisStore(cfg.Redis)
	cacheMgr, err := cache.NewManager(cacheStore, cfg.Cache, logger)
	if err != nil {
		logger.Fatal("Failed to create cache manager", zap.Error(err))
	}
	if err := cacheMgr.Initialize(context.Background()); err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer cacheMgr.Close()

	// Warm job queue
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	jobQueue := queue.NewRedisQueue(redisClient)

	// Request path
	compiler := engine.NewClient(cfg.Engine)
	queries := query.NewService(repo, compiler, cacheMgr, logger, cfg)
	tester := health.NewTester(repo, logger, cfg.Monitoring)

	handler := handlers.New(queries, cacheMgr, tester, repo, jobQueue, logger, cfg)
	server := api.NewServer(cfg, handler, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(mode string) *zap.Logger {
	if mode == "release" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}
