package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/telhawk-systems/hotdog/internal/config"
	"github.com/telhawk-systems/hotdog/internal/metrics"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// New builds the limiter selected by cfg. A disabled config yields a
// NoOpRateLimiter.
func New(cfg config.RateLimitConfig) (RateLimiter, error) {
	if !cfg.Enabled {
		return &NoOpRateLimiter{}, nil
	}
	switch cfg.Backend {
	case config.RateLimitRedis:
		return NewRedisRateLimiter(cfg.RedisURL, cfg.Requests, cfg.Window)
	case config.RateLimitMemory, "":
		return NewMemoryRateLimiter(cfg.Requests, cfg.Window, cfg.MaxKeys), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// Sliding window over a sorted set. Members must be unique per request, so
// ARGV[4] carries a per-process sequence number.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]
	local ttl = tonumber(ARGV[5])

	-- Remove old entries
	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	-- Count current entries
	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return 1
	end
	return 0
`)

type redisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	seq    atomic.Uint64
}

func NewRedisRateLimiter(redisURL string, limit int, window time.Duration) (RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newRedisRateLimiter(client, limit, window), nil
}

func newRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *redisRateLimiter {
	return &redisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Allow implements sliding window rate limiting using Redis
func (r *redisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)
	ttl := int64(r.window/time.Second) + 1

	result, err := slidingWindow.Run(ctx, r.client, []string{"hotdog:ratelimit:" + key}, now, windowStart, r.limit, member, ttl).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(keyKind(key)).Inc()
	}

	return allowed, nil
}

// Ping reports whether Redis is reachable.
func (r *redisRateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisRateLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// DefaultMaxKeys caps the buckets a MemoryRateLimiter keeps.
const DefaultMaxKeys = 10000

// MemoryRateLimiter is a per-process token bucket per key. Buckets live in
// an LRU, so the least recently seen key is dropped once maxKeys is reached.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	every    rate.Limit
	burst    int
}

// NewMemoryRateLimiter allows limit requests per window per key, refilled
// evenly across the window. A non-positive maxKeys uses DefaultMaxKeys.
func NewMemoryRateLimiter(limit int, window time.Duration, maxKeys int) *MemoryRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, *rate.Limiter](maxKeys)
	return &MemoryRateLimiter{
		limiters: cache,
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	l, ok := m.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(m.every, m.burst)
		m.limiters.Add(key, l)
	}
	m.mu.Unlock()

	if l.Allow() {
		return true, nil
	}
	metrics.RateLimitHits.WithLabelValues(keyKind(key)).Inc()
	return false, nil
}

// Len reports how many keys currently hold a bucket.
func (m *MemoryRateLimiter) Len() int {
	return m.limiters.Len()
}

func (m *MemoryRateLimiter) Close() error {
	m.limiters.Purge()
	return nil
}

// keyKind maps a "team:..." or "ip:..." key to its prefix so metric labels
// stay bounded.
func keyKind(key string) string {
	kind, _, found := strings.Cut(key, ":")
	switch {
	case found && (kind == "team" || kind == "ip"):
		return kind
	default:
		return "other"
	}
}

// NoOpRateLimiter always allows requests (for testing or disabled rate limiting)
type NoOpRateLimiter struct{}

func (n *NoOpRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (n *NoOpRateLimiter) Close() error {
	return nil
}
