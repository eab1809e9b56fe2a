package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/cache"
	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/query"
	"github.com/quantaleap/analytics-gateway/internal/queue"
	"github.com/quantaleap/analytics-gateway/internal/store"
	"github.com/quantaleap/analytics-gateway/pkg/engine"
)

const popTimeout = 5 * time.Second

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

	cacheStore := cache.NewRedisStore(cfg.Redis)
	cacheMgr, err := cache.NewManager(cacheStore, cfg.Cache, logger)
	if err != nil {
		logger.Fatal("Failed to create cache manager", zap.Error(err))
	}
	if err := cacheMgr.Initialize(context.Background()); err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer cacheMgr.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	jobQueue := queue.NewRedisQueue(redisClient)

	compiler := engine.NewClient(cfg.Engine)
	queries := query.NewService(repo, compiler, cacheMgr, logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	w := &worker{
		queue:    jobQueue,
		cacheMgr: cacheMgr,
		queries:  queries,
		logger:   logger,
	}

	var wg sync.WaitGroup
	workers := cfg.Monitoring.Workers
	if workers <= 0 {
		workers = 5
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}

	logger.Info("Warm worker started", zap.Int("workers", workers))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	wg.Wait()
	logger.Info("Worker exited")
}

type worker struct {
	queue    *queue.RedisQueue
	cacheMgr *cache.Manager
	queries  *query.Service
	logger   *zap.Logger
}

func (w *worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.Pop(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) || ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to pop warm job", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		w.process(ctx, job)
	}
}

// process warms one pre-aggregation by executing its defining query and
// caching the result under the tenant's pre-aggregation namespace.
func (w *worker) process(ctx context.Context, job *queue.Job) {
	if job.Query == nil {
		w.logger.Warn("Warm job without query, skipping",
			zap.String("job_id", job.ID),
			zap.String("tenant_id", job.TenantID),
		)
		return
	}

	sc := &core.SecurityContext{TenantID: job.TenantID, IsAuthenticated: true}

	warmed, err := w.cacheMgr.WarmUpCache(ctx, job.TenantID, []string{job.PreAggregation},
		func(ctx context.Context, name string) (interface{}, error) {
			result, err := w.queries.Execute(ctx, sc, job.Query)
			if err != nil {
				return nil, err
			}
			return result.Data, nil
		})
	if err != nil {
		w.logger.Error("Warm job failed",
			zap.String("job_id", job.ID),
			zap.String("tenant_id", job.TenantID),
			zap.String("pre_aggregation", job.PreAggregation),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("Warm job complete",
		zap.String("job_id", job.ID),
		zap.String("tenant_id", job.TenantID),
		zap.String("pre_aggregation", job.PreAggregation),
		zap.Int("artifacts_built", warmed),
	)
}
