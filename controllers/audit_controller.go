package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/app"
)

type AuditController struct{ *Srv }

func NewAuditController(s *Srv) *AuditController { return &AuditController{Srv: s} }

// GET /api/audit/:objectType/:objectId  (admin)
func (ac *AuditController) List(c *gin.Context) {
	logs, err := ac.Audit.ListAudit(c.Request.Context(), c.Param("objectType"), c.Param("objectId"))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": logs})
}
