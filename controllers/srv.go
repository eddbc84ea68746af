package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/app"
	"github.com/pearleseed/device-hub-sub001/db"
	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
	"github.com/pearleseed/device-hub-sub001/session"
)

// Reservations is the part of reservation.Service the handlers call.
type Reservations interface {
	CreateBorrow(ctx context.Context, cmd reservation.CreateBorrow) (*models.BorrowRequest, error)
	SetBorrowStatus(ctx context.Context, cmd reservation.SetBorrowStatus) (*models.BorrowRequest, error)
	CreateReturn(ctx context.Context, cmd reservation.CreateReturn) (*models.ReturnRequest, error)
	UpdateReturnCondition(ctx context.Context, cmd reservation.UpdateReturnCondition) (*models.ReturnRequest, error)
	CreateRenewal(ctx context.Context, cmd reservation.CreateRenewal) (*models.RenewalRequest, error)
	SetRenewalStatus(ctx context.Context, cmd reservation.SetRenewalStatus) (*models.RenewalRequest, error)

	GetBorrow(ctx context.Context, id string, actor reservation.Actor) (*reservation.BorrowDetail, error)
	ListBorrows(ctx context.Context, f reservation.BorrowFilter, actor reservation.Actor) (*reservation.BorrowPage, error)
	ListRenewals(ctx context.Context, borrowID string, actor reservation.Actor) ([]models.RenewalRequest, error)
	GetReturnByBorrow(ctx context.Context, borrowID string, actor reservation.Actor) (*models.ReturnRequest, error)
}

type AuditLister interface {
	ListAudit(ctx context.Context, objectType, objectID string) ([]models.AuditLog, error)
}

type Srv struct {
	Res       Reservations
	Repo      *db.Repo
	Audit     AuditLister
	AppSess   *session.AppSessionStore
	WebOrigin string
	Cfg       app.Config
	Log       *slog.Logger
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Res:       a.Reservations,
		Repo:      a.Repo,
		Audit:     a.Audit,
		AppSess:   a.AppSessions(),
		WebOrigin: a.Config.WebOrigin,
		Cfg:       a.Config,
		Log:       a.Log,
	}
}

// --- helpers ---

func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.WebOrigin, "https://"),
	})
}

func statusFor(kind reservation.Kind) int {
	switch kind {
	case reservation.KindValidation:
		return http.StatusBadRequest
	case reservation.KindNotFound:
		return http.StatusNotFound
	case reservation.KindConflict:
		return http.StatusConflict
	case reservation.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case reservation.KindPermission:
		return http.StatusForbidden
	case reservation.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as JSON. Unclassified errors are logged and hidden.
func (s *Srv) fail(c *gin.Context, err error) {
	kind := reservation.KindOf(err)
	status := statusFor(kind)
	switch {
	case kind == reservation.KindTransient:
		c.Header("Retry-After", "1")
		c.JSON(status, app.H{"error": "temporarily unavailable, please retry", "kind": kind})
	case kind != "" && kind != reservation.KindInternal:
		c.JSON(status, app.H{"error": err.Error(), "kind": kind})
	default:
		s.Log.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(status, app.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg, "kind": reservation.KindValidation})
}

func actorOf(c *gin.Context) (reservation.Actor, bool) {
	actor, ok := app.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
	}
	return actor, ok
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("invalid date " + s + ", want YYYY-MM-DD")
	}
	return reservation.DateOf(t), nil
}
