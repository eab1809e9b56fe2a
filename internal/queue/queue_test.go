package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantaleap/analytics-gateway/internal/core"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisQueue(client)
}

func TestQueue_PushPop(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job := NewJob("acme-1", "orders_by_day", &core.SemanticQuery{
		Measures:   []string{"Orders.count"},
		Dimensions: []string{"Orders.createdAt.day"},
	})
	require.NotEmpty(t, job.ID)
	require.NoError(t, q.Push(ctx, job))

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "acme-1", got.TenantID)
	assert.Equal(t, "orders_by_day", got.PreAggregation)
	require.NotNil(t, got.Query)
	assert.Equal(t, []string{"Orders.count"}, got.Query.Measures)

	n, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestQueue_PriorityOrdering(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	low := NewJob("acme-1", "slow_rollup", nil)
	low.Priority = 100
	high := NewJob("acme-1", "hot_rollup", nil)
	high.Priority = 1

	require.NoError(t, q.Push(ctx, low))
	require.NoError(t, q.Push(ctx, high))

	first, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hot_rollup", first.PreAggregation)
}

func TestQueue_PopTimeout(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Pop(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}
