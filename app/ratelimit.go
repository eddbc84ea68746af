package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/session"
)

// RateLimit is a fixed-window counter per actor (or client IP before
// authentication). Storage errors let the request through.
func RateLimit(kv session.KV, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}
		id := "ip:" + c.ClientIP()
		if actor, ok := ActorFrom(c); ok {
			id = "user:" + actor.ID
		}

		n, err := kv.Incr(c.Request.Context(), "rl:"+id, window)
		if err != nil {
			log.Warn("rate limit unavailable", "key", id, "err", err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if remaining := int64(limit) - n; remaining > 0 {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		} else {
			c.Header("X-RateLimit-Remaining", "0")
		}
		if n > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window/time.Second)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
