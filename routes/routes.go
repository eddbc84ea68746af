package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/app"
	"github.com/pearleseed/device-hub-sub001/controllers"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)

	authMW := app.AuthRequired(a.AppSessions(), a.Repo, a.Config)
	seenMW := app.TouchLastSeen(a.Repo, a.KV, 5*time.Minute, a.Log)
	limitMW := app.RateLimit(a.KV, a.Config.RateLimitPerMinute, time.Minute, a.Log)

	Register(r, s, authMW, seenMW, limitMW)
}

// Register mounts every handler behind the given authentication and
// rate-limit middleware. Tests pass their own authMW.
func Register(r *gin.Engine, s *controllers.Srv, authMW, seenMW, limitMW gin.HandlerFunc) {
	adminMW := app.AdminOnly()

	borrows := controllers.NewBorrowController(s)
	returns := controllers.NewReturnController(s)
	renewals := controllers.NewRenewalController(s)
	devices := controllers.NewDeviceController(s)
	users := controllers.NewUserController(s)
	audit := controllers.NewAuditController(s)

	api := r.Group("/api", authMW, seenMW)
	{
		api.GET("/me", users.WhoAmI)
		api.POST("/logout", users.Logout)

		api.GET("/devices", devices.List)
		api.GET("/devices/:id", devices.Get)

		api.GET("/borrows", borrows.List)
		api.GET("/borrows/:id", borrows.Get)
		api.GET("/borrows/:id/return", returns.GetByBorrow)
		api.GET("/borrows/:id/renewals", renewals.List)
	}

	// Mutations are rate limited per actor.
	write := api.Group("", limitMW)
	{
		write.POST("/borrows", borrows.Create)
		write.PATCH("/borrows/:id/status", borrows.SetStatus)
		write.POST("/borrows/:id/return", returns.Create)
		write.POST("/borrows/:id/renewals", renewals.Create)
		write.PATCH("/renewals/:id/status", renewals.SetStatus)
	}

	admin := api.Group("", adminMW, limitMW)
	{
		admin.POST("/devices", devices.Create)
		admin.PATCH("/returns/:id", returns.UpdateCondition)

		admin.GET("/users", users.ListUsers)
		admin.GET("/users/:id", users.GetUser)
		admin.PUT("/users/:id/admin", users.SetAdmin)

		admin.GET("/audit/:objectType/:objectId", audit.List)
	}
}
