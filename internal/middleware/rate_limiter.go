package middleware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lk2023060901/startpage-backend/internal/conf"
	"github.com/lk2023060901/startpage-backend/internal/pkg/clientinfo"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
)

const defaultRule = "default"

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	Window time.Duration
	// Default applies to paths no rule matches.
	Default int
	// Rules are checked in order; the first matching prefix wins.
	Rules []conf.RateRule
}

// 滑动窗口: scores and the window are in milliseconds, members are unique
// so bursts inside one millisecond are all counted.
const slidingWindowScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window)
		return {1, limit - current - 1, now + window}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
	return {0, 0, tonumber(oldest) + window}
`

type decision struct {
	allowed   bool
	remaining int
	reset     time.Time
}

// RateLimiter 基于 Redis 的滑动窗口限流中间件. Keys are per rule and client
// IP. When redis fails, an in-process token bucket per rule and IP decides
// instead of letting everything through.
func RateLimiter(rdb *redis.Client, cfg RateLimiterConfig, m *metrics.Metrics, log *logger.Logger) gin.HandlerFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Default <= 0 {
		cfg.Default = 200
	}
	local := newLocalLimiter(cfg.Window)
	log = log.Named("ratelimit")

	return func(c *gin.Context) {
		rule, limit := matchRule(cfg, c.Request.URL.Path)
		ip := clientinfo.ClientIP(c)
		key := fmt.Sprintf("rate_limit:%s:%s", rule, ip)

		d, err := checkRateLimit(c.Request.Context(), rdb, key, limit, cfg.Window)
		if err != nil {
			log.Error("rate limiter error, using local limiter", zap.Error(err), zap.String("key", key))
			m.RecordLocalRateLimit()
			d = local.allow(key, limit)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))

		if !d.allowed {
			retry := max(int(time.Until(d.reset).Seconds()+0.999), 1)
			c.Header("Retry-After", strconv.Itoa(retry))
			m.RecordRateLimited(rule)
			response.ErrorWithCode(c, apperrors.ErrTooManyRequests,
				fmt.Sprintf("too many requests, please try again in %d seconds", retry))
			return
		}
		c.Next()
	}
}

func matchRule(cfg RateLimiterConfig, path string) (string, int) {
	for _, r := range cfg.Rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Prefix, r.Requests
		}
	}
	return defaultRule, cfg.Default
}

// checkRateLimit 使用 Redis 滑动窗口算法检查限流
func checkRateLimit(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (decision, error) {
	now := time.Now().UnixMilli()
	result, err := rdb.Eval(ctx, slidingWindowScript, []string{key},
		now, window.Milliseconds(), limit, strconv.FormatInt(now, 10)+"-"+uuid.NewString()[:8])
	if err != nil {
		return decision{}, err
	}

	values, ok := result.([]any)
	if !ok || len(values) != 3 {
		return decision{}, fmt.Errorf("invalid rate limit result %v", result)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	reset, _ := values[2].(int64)

	return decision{
		allowed:   allowed == 1,
		remaining: int(remaining),
		reset:     time.UnixMilli(reset),
	}, nil
}

// localLimiter is the fallback used while redis is unavailable.
type localLimiter struct {
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	sweep   time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(window time.Duration) *localLimiter {
	return &localLimiter{window: window, buckets: make(map[string]*bucket), sweep: time.Now()}
}

func (l *localLimiter) allow(key string, limit int) decision {
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.sweep) > l.window {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.window {
				delete(l.buckets, k)
			}
		}
		l.sweep = now
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(limit)), limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	return decision{
		allowed:   allowed,
		remaining: max(int(b.limiter.TokensAt(now)), 0),
		reset:     now.Add(l.window),
	}
}
