package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/metrics"
)

// ErrNotInitialized is returned when a cache operation runs before
// Initialize has verified store connectivity.
var ErrNotInitialized = errors.New("cache: manager not initialized")

const (
	tenantKeySegment = "tenant"
	queryNamespace   = "query"
	preAggNamespace  = "preagg"

	// Values larger than this are snappy-compressed before storage.
	compressThreshold = 4 * 1024
	compressPrefix    = "snappy:"

	opTimeout = 2 * time.Second
)

// Manager is the namespaced, tenant-isolated cache for query results and
// pre-aggregation artifacts. Reads fail open: a degraded store is reported
// as a miss, never as a request failure. Construct with NewManager, call
// Initialize before use and Close on shutdown.
type Manager struct {
	store  Store
	cfg    config.CacheConfig
	logger *zap.Logger

	hits        atomic.Int64
	misses      atomic.Int64
	initialized atomic.Bool

	// Bounded in-process tier in front of the store, sized by
	// querycache.maxsize. Nil when the query cache is disabled.
	local *lru.Cache[string, localEntry]
}

type localEntry struct {
	data    []byte
	expires time.Time
}

// CacheMetrics is a point-in-time snapshot; store-reported figures are
// best-effort and zero when unobtainable.
type CacheMetrics struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	HitRate         float64 `json:"hit_rate"`
	KeyCount        int64   `json:"key_count"`
	UsedMemoryBytes int64   `json:"used_memory_bytes"`
}

func NewManager(store Store, cfg config.CacheConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.QueryCache.Enabled && cfg.QueryCache.MaxSize > 0 {
		local, err := lru.New[string, localEntry](cfg.QueryCache.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create local cache tier: %w", err)
		}
		m.local = local
	}
	return m, nil
}

// Initialize verifies store connectivity. No operation succeeds before this
// has returned nil once.
func (m *Manager) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("cache store ping failed: %w", err)
	}
	m.initialized.Store(true)
	m.logger.Info("Cache manager initialized", zap.String("key_prefix", m.cfg.KeyPrefix))
	return nil
}

func (m *Manager) Close() error {
	m.initialized.Store(false)
	if m.local != nil {
		m.local.Purge()
	}
	return m.store.Close()
}

// QueryCacheKey builds the namespaced key for a rewritten query's result.
// The tenant prefix is mandatory; there is no way to build a tenant-facing
// key without going through the tenant id check.
func (m *Manager) QueryCacheKey(tenantID string, q *core.SemanticQuery) (string, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("failed to hash query: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	return m.tenantKey(tenantID, queryNamespace, hash), nil
}

// PreAggCacheKey builds the namespaced key for a pre-aggregation artifact.
func (m *Manager) PreAggCacheKey(tenantID, name string) (string, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	return m.tenantKey(tenantID, preAggNamespace, name), nil
}

func (m *Manager) tenantKey(tenantID, namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", m.cfg.KeyPrefix, tenantKeySegment, tenantID, namespace, key)
}

// Get unmarshals the cached value for key into dest. Store failures are
// logged and reported as a miss so a degraded cache never blocks serving.
func (m *Manager) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !m.initialized.Load() {
		return false, ErrNotInitialized
	}

	if m.local != nil {
		if entry, ok := m.local.Get(key); ok {
			if time.Now().Before(entry.expires) {
				if err := json.Unmarshal(entry.data, dest); err == nil {
					m.hits.Add(1)
					metrics.CacheHits.Inc()
					return true, nil
				}
			}
			m.local.Remove(key)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			m.logger.Warn("Cache get failed, treating as miss",
				zap.String("key", key),
				zap.Error(err),
			)
			metrics.CacheErrors.WithLabelValues("get").Inc()
		}
		m.misses.Add(1)
		metrics.CacheMisses.Inc()
		return false, nil
	}

	data, err := decodeValue(raw)
	if err == nil {
		err = json.Unmarshal(data, dest)
	}
	if err != nil {
		m.logger.Warn("Cache value corrupt, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		m.misses.Add(1)
		metrics.CacheMisses.Inc()
		return false, nil
	}

	m.hits.Add(1)
	metrics.CacheHits.Inc()
	return true, nil
}

// Set stores value under key with an explicit TTL (DefaultTTL when ttl <= 0).
// Store failures are logged but non-fatal: correctness depends on the origin
// query, not on cache durability.
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("marshal").Inc()
		return fmt.Errorf("failed to marshal cache value for key %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := m.store.Set(ctx, key, encodeValue(data), ttl); err != nil {
		m.logger.Warn("Cache set failed",
			zap.String("key", key),
			zap.Error(err),
		)
		metrics.CacheErrors.WithLabelValues("set").Inc()
		return nil
	}

	if m.local != nil {
		m.local.Add(key, localEntry{data: data, expires: time.Now().Add(ttl)})
	}
	return nil
}

// Delete removes a single key from both tiers.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	if m.local != nil {
		m.local.Remove(key)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := m.store.Del(ctx, key)
	return err
}

// ClearPattern removes every key matching the glob pattern and returns the
// number of keys removed from the store.
func (m *Manager) ClearPattern(ctx context.Context, pattern string) (int, error) {
	if !m.initialized.Load() {
		return 0, ErrNotInitialized
	}

	if m.local != nil {
		for _, key := range m.local.Keys() {
			if ok, _ := path.Match(pattern, key); ok {
				m.local.Remove(key)
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	keys, err := m.store.Keys(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to list keys for pattern %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := m.store.Del(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys for pattern %s: %w", pattern, err)
	}
	return int(removed), nil
}

// InvalidateTenant removes every cached entry in the tenant's namespace.
func (m *Manager) InvalidateTenant(ctx context.Context, tenantID string) (int, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}
	pattern := fmt.Sprintf("%s:%s:%s:*", m.cfg.KeyPrefix, tenantKeySegment, tenantID)
	return m.ClearPattern(ctx, pattern)
}

// HitRate is hits/(hits+misses), 0 before any observation.
func (m *Manager) HitRate() float64 {
	hits := m.hits.Load()
	total := hits + m.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Metrics snapshots the running counters plus best-effort store figures.
func (m *Manager) Metrics(ctx context.Context) *CacheMetrics {
	snapshot := &CacheMetrics{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		HitRate: m.HitRate(),
	}
	if !m.initialized.Load() {
		return snapshot
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if count, err := m.store.DBSize(ctx); err == nil {
		snapshot.KeyCount = count
	}
	if info, err := m.store.Info(ctx, "memory"); err == nil {
		snapshot.UsedMemoryBytes = parseUsedMemory(info)
	}
	return snapshot
}

// HealthCheck pings the store.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return m.store.Ping(ctx)
}

// BuildFunc produces a pre-aggregation artifact by name.
type BuildFunc func(ctx context.Context, name string) (interface{}, error)

// WarmUpCache ensures a cached artifact exists for each requested
// pre-aggregation, building the missing ones. One failed build never aborts
// the remaining names. Returns the number of artifacts built.
func (m *Manager) WarmUpCache(ctx context.Context, tenantID string, names []string, build BuildFunc) (int, error) {
	if !m.initialized.Load() {
		return 0, ErrNotInitialized
	}
	if err := core.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}

	warmed := 0
	for _, name := range names {
		key, err := m.PreAggCacheKey(tenantID, name)
		if err != nil {
			return warmed, err
		}

		var existing json.RawMessage
		if found, _ := m.Get(ctx, key, &existing); found {
			continue
		}

		artifact, err := build(ctx, name)
		if err != nil {
			m.logger.Warn("Pre-aggregation build failed, continuing",
				zap.String("tenant_id", tenantID),
				zap.String("preaggregation", name),
				zap.Error(err),
			)
			metrics.WarmupsTotal.WithLabelValues("failure").Inc()
			continue
		}

		if err := m.Set(ctx, key, artifact, m.cfg.PreAggregation.MaxAge); err != nil {
			m.logger.Warn("Pre-aggregation cache write failed",
				zap.String("tenant_id", tenantID),
				zap.String("preaggregation", name),
				zap.Error(err),
			)
			metrics.WarmupsTotal.WithLabelValues("failure").Inc()
			continue
		}
		metrics.WarmupsTotal.WithLabelValues("success").Inc()
		warmed++
	}
	return warmed, nil
}

func encodeValue(data []byte) string {
	if len(data) <= compressThreshold {
		return string(data)
	}
	return compressPrefix + string(snappy.Encode(nil, data))
}

func decodeValue(raw string) ([]byte, error) {
	if !strings.HasPrefix(raw, compressPrefix) {
		return []byte(raw), nil
	}
	return snappy.Decode(nil, []byte(raw[len(compressPrefix):]))
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		if val, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if bytes, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
				return bytes
			}
		}
	}
	return 0
}
