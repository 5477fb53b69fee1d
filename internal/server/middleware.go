package server

import (
	"fmt"
	"net/http"
	"time"

	"auction-house/internal/biddingerrors"
	"auction-house/internal/identity"
	"auction-house/services/bidding/helpers"
	"auction-house/utils"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// AuthMiddleware resolves the bearer token to a user and stores it on the context.
// Requests without a valid session are rejected with 401.
func AuthMiddleware(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := identity.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			helpers.WriteServiceError(c, biddingerrors.ErrIdentityRequired)
			c.Abort()
			return
		}

		user, err := provider.ResolveSession(c.Request.Context(), token)
		if err != nil {
			helpers.WriteServiceError(c, err)
			c.Abort()
			utils.Warn("AuthMiddleware: session not resolved", map[string]any{"path": c.Request.URL.Path, "error": err.Error()})
			return
		}

		c.Set(helpers.UserContextKey, user)
		c.Next()
	}
}

// luaRateLimit is a sliding window counter.
// KEYS[1]=key ARGV[1]=now ARGV[2]=window start ARGV[3]=window seconds ARGV[4]=member ARGV[5]=limit
// Returns the request count inside the window, or -1 when the limit is reached.
const luaRateLimit = `
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

// RedisRateLimit limits bid submissions per user across all instances.
// It keys on the authenticated user and falls back to the client IP.
// When Redis is unavailable requests are let through.
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:bids:ip:%s", c.ClientIP())
		if user, ok := helpers.CurrentUser(c); ok {
			key = fmt.Sprintf("rate_limit:bids:user:%s", user.UserID)
		}

		now := time.Now()
		windowMs := window.Milliseconds()
		nowMs := now.UnixMilli()
		windowSec := int64(window.Seconds())
		if windowSec < 1 {
			windowSec = 1
		}
		member := fmt.Sprintf("%d-%s", now.UnixNano(), utils.GenerateID())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			nowMs, nowMs-windowMs, windowSec, member, limit).Int()
		if err != nil {
			utils.Warn("RedisRateLimit: redis unavailable, allowing request", map[string]any{"key": key, "error": err.Error()})
			c.Next()
			return
		}

		if res < 0 {
			utils.JSONError(c, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded for %s", key), "too many bids, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
