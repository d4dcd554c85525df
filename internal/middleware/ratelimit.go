package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/response"
)

// RateLimit allows maxRequests per client IP and route within a fixed window. Instances sharing a redis
// or database store share limits; a nil store counts in process memory. Store failures let the
// request through.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}
	limit := strconv.Itoa(maxRequests)

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := cache.Key("ratelimit", c.ClientIP(), route)

		hits, err := store.Hit(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		resetSeconds := int(hits.ResetIn / time.Second)
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(int64(maxRequests)-hits.Count, 0), 10))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

		if hits.Count > int64(maxRequests) {
			c.Header("Retry-After", strconv.Itoa(resetSeconds+1))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}
