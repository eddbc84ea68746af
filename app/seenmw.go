package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/session"
)

type SeenToucher interface {
	TouchUserSeen(ctx context.Context, userID string) error
}

// TouchLastSeen updates users.last_seen_at at most once per throttle window.
func TouchLastSeen(users SeenToucher, kv session.KV, throttle time.Duration, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.Next()
			return
		}

		key := "user:lastseen:" + actor.ID
		if first, err := kv.SetNX(c.Request.Context(), key, []byte("1"), throttle); err == nil && first {
			if err := users.TouchUserSeen(c.Request.Context(), actor.ID); err != nil {
				log.Warn("touch last seen failed", "user", actor.ID, "err", err)
			}
		}
		c.Next()
	}
}
