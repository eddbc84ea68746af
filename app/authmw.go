package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
	"github.com/pearleseed/device-hub-sub001/session"
)

const AppSessionCookie = "app_session"

const (
	ctxUserID  = "userID"
	ctxIsAdmin = "isAdmin"
	ctxActor   = "actor"
)

type UserFinder interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuthRequired resolves the session cookie to a user and stores the
// reservation actor in the context. A user is admin by flag or by being
// listed in ADMIN_EMAILS.
func AuthRequired(appSess *session.AppSessionStore, users UserFinder, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		u, err := users.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			_ = appSess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}

		actor := reservation.Actor{ID: u.ID, IsAdmin: u.IsAdmin || cfg.IsAdminEmail(u.Username)}
		c.Set(ctxUserID, u.ID)
		c.Set(ctxIsAdmin, actor.IsAdmin)
		c.Set(ctxActor, actor)
		c.Next()
	}
}

// ActorFrom returns the actor AuthRequired stored.
func ActorFrom(c *gin.Context) (reservation.Actor, bool) {
	v, ok := c.Get(ctxActor)
	if !ok {
		return reservation.Actor{}, false
	}
	actor, ok := v.(reservation.Actor)
	return actor, ok && actor.ID != ""
}

// SetActor is used by tests and by any other authentication front.
func SetActor(c *gin.Context, actor reservation.Actor) {
	c.Set(ctxUserID, actor.ID)
	c.Set(ctxIsAdmin, actor.IsAdmin)
	c.Set(ctxActor, actor)
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !actor.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
