// Package queue is the redis-backed work queue that feeds pre-aggregation
// warm jobs to the worker fleet.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quantaleap/analytics-gateway/internal/core"
)

var ErrTimeout = errors.New("queue timeout")

const warmQueueName = "preagg_warm_jobs"

// Job asks a worker to warm one pre-aggregation for one tenant. Query is the
// semantic query whose result becomes the cached artifact.
type Job struct {
	ID             string              `json:"id"`
	TenantID       string              `json:"tenant_id"`
	PreAggregation string              `json:"pre_aggregation"`
	Query          *core.SemanticQuery `json:"query,omitempty"`
	Priority       int                 `json:"priority"`
	CreatedAt      time.Time           `json:"created_at"`
}

func NewJob(tenantID, preAggregation string, query *core.SemanticQuery) *Job {
	return &Job{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		PreAggregation: preAggregation,
		Query:          query,
		CreatedAt:      time.Now(),
	}
}

type RedisQueue struct {
	client    *redis.Client
	queueName string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueName: warmQueueName,
	}
}

// Push enqueues a job. Priority is the sort score (lower pops first); jobs
// without an explicit priority are ordered by enqueue time.
func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	score := float64(job.Priority)
	if score == 0 {
		score = float64(time.Now().Unix())
	}

	if err := q.client.ZAdd(ctx, q.queueName, redis.Z{
		Score:  score,
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("failed to push job: %w", err)
	}
	return nil
}

// Pop blocks until a job is available or the timeout elapses.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BZPopMin(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}

	raw, ok := result.Member.(string)
	if !ok {
		return nil, errors.New("invalid member type from queue")
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueName).Result()
}
