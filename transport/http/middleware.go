package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/wallet2fa/service"
)

const (
	RequestIDHeader = "X-Request-ID"

	userAddressKey = "userAddress"
	requestIDKey   = "requestID"
	bearerPrefix   = "Bearer "

	rateLimitPrefix = "wallet2fa:rl:"
	rateLimitWindow = time.Minute
)

// incrWithWindow bumps KEYS[1] and (re)arms its expiry whenever the key has none
var incrWithWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// AuthMiddleware creates middleware that validates session tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, bearerPrefix) || len(auth) == len(bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}

		session, err := authService.ValidateSession(c.Request.Context(), auth[len(bearerPrefix):])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}

		c.Set(userAddressKey, session.Address)
		c.Next()
	}
}

// RequestID tags each request with an id, reusing the caller's when present
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger logs one line per completed request
func Logger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"client_ip":  c.ClientIP(),
			"latency":    time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Debug("request completed")
	}
}

// Recovery turns a panic into a bare 500
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithField("request_id", c.GetString(requestIDKey)).
			WithField("panic", recovered).
			Error("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	})
}

// RateLimit caps requests per client IP per minute using Redis.
// It is a no-op without a client and fails open on Redis errors.
func RateLimit(cache *redis.Client, maxPerMin int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || maxPerMin <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := rateLimitPrefix + c.ClientIP()
		cnt, err := incrWithWindow.Run(ctx, cache, []string{key}, rateLimitWindow.Milliseconds()).Int64()
		if err != nil {
			c.Next()
			return
		}
		if cnt > int64(maxPerMin) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, try again later"})
			return
		}
		c.Next()
	}
}
