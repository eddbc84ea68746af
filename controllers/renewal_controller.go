package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/app"
	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
)

type RenewalController struct{ *Srv }

func NewRenewalController(s *Srv) *RenewalController { return &RenewalController{Srv: s} }

// POST /api/borrows/:id/renewals
func (rc *RenewalController) Create(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var in struct {
		RequestedEndDate string `json:"requestedEndDate" binding:"required"`
		Reason           string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	end, err := parseDate(in.RequestedEndDate)
	if err != nil {
		badRequest(c, "requestedEndDate: "+err.Error())
		return
	}
	rn, err := rc.Res.CreateRenewal(c.Request.Context(), reservation.CreateRenewal{
		BorrowRequestID: c.Param("id"),
		RequestedEnd:    end,
		Reason:          in.Reason,
		Actor:           actor,
	})
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rn)
}

// GET /api/borrows/:id/renewals
func (rc *RenewalController) List(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	rs, err := rc.Res.ListRenewals(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": rs})
}

// PATCH /api/renewals/:id/status
func (rc *RenewalController) SetStatus(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var in statusReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	rn, err := rc.Res.SetRenewalStatus(c.Request.Context(), reservation.SetRenewalStatus{
		RenewalID: c.Param("id"),
		Target:    models.RenewalStatus(in.Status),
		Actor:     actor,
	})
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rn)
}
