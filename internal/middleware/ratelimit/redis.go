// Package ratelimit throttles abusive clients with a Redis sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/pkg/errors"
)

// Timestamps are milliseconds so scores stay exact as Lua doubles.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2]) or now}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, count + 1, now}
`)

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Limiter allows at most limit requests per key within window.
type Limiter struct {
	client *redis.Client
	window time.Duration
	limit  int
	log    *zap.Logger
	now    func() time.Time
}

// New returns a limiter. A nil client disables limiting.
func New(client *redis.Client, window time.Duration, limit int, log *zap.Logger) *Limiter {
	return &Limiter{client: client, window: window, limit: limit, log: log, now: time.Now}
}

// Take records one request for key if the window has room.
func (l *Limiter) Take(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	window := l.window.Milliseconds()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{key}, now, window, l.limit, uuid.NewString()).Result()
	if err != nil {
		return Decision{}, err
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return Decision{}, fmt.Errorf("unexpected redis script result: %v", res)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	oldest, _ := vals[2].(int64)

	d := Decision{Allowed: allowed == 1, Count: count}
	if !d.Allowed {
		d.RetryAfter = time.Duration(oldest+window-now) * time.Millisecond
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d, nil
}

// Middleware limits requests per client IP on route. Without Redis it is a
// pass-through; Redis errors let the request through.
func (l *Limiter) Middleware(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.client == nil {
			c.Next()
			return
		}
		d, err := l.Take(c.Request.Context(), "rl:"+route+":"+c.ClientIP())
		if err != nil {
			l.log.Warn("rate limiter unavailable", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			responses.Fail(c, errors.TooManyRequests.Explain("too many requests, retry later"))
			return
		}
		c.Next()
	}
}
