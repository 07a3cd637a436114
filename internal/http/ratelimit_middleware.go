package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// slidingWindowScript trims the window, counts it and records the request
// when under the limit. Returns the new count, or -1 when limited.
// KEYS[1]=key ARGV: now, windowStart, windowSec, member, limit.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)
local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits each authenticated user to limit requests per window
// on the routes it guards; anonymous requests are keyed by client IP. A nil
// client or a Redis error lets the request through.
func RedisRateLimit(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	windowSec := int64(window / time.Second)
	if windowSec <= 0 {
		windowSec = 1
	}
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		var key string
		if userID := c.GetUint64("userID"); userID > 0 {
			key = fmt.Sprintf("rate_limit:%s:user:%d", scope, userID)
		} else {
			key = fmt.Sprintf("rate_limit:%s:ip:%s", scope, c.ClientIP())
		}

		now := time.Now()
		nowSec := now.Unix()
		member := fmt.Sprintf("%d-%d", nowSec, now.UnixNano())
		res, err := rdb.Eval(c.Request.Context(), slidingWindowScript, []string{key},
			nowSec, nowSec-windowSec, windowSec, member, limit).Int()
		if err != nil {
			log.WithError(err).WithField("key", key).Debug("rate limit: redis unavailable, allowing request")
			c.Next()
			return
		}
		if res < 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", windowSec))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// NewRedisClient parses url and returns a client, or nil when url is empty.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return redis.NewClient(opts), nil
}
