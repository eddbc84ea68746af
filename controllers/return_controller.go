package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
)

type ReturnController struct{ *Srv }

func NewReturnController(s *Srv) *ReturnController { return &ReturnController{Srv: s} }

// POST /api/borrows/:id/return
func (rc *ReturnController) Create(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var in struct {
		Condition string `json:"condition" binding:"required"`
		Notes     string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	r, err := rc.Res.CreateReturn(c.Request.Context(), reservation.CreateReturn{
		BorrowRequestID: c.Param("id"),
		Condition:       models.DeviceCondition(in.Condition),
		Notes:           in.Notes,
		Actor:           actor,
	})
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// GET /api/borrows/:id/return
func (rc *ReturnController) GetByBorrow(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	r, err := rc.Res.GetReturnByBorrow(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// PATCH /api/returns/:id  (admin)
// An absent "notes" keeps the recorded notes.
func (rc *ReturnController) UpdateCondition(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var in struct {
		Condition string  `json:"condition" binding:"required"`
		Notes     *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	r, err := rc.Res.UpdateReturnCondition(c.Request.Context(), reservation.UpdateReturnCondition{
		ReturnRequestID: c.Param("id"),
		Condition:       models.DeviceCondition(in.Condition),
		Notes:           in.Notes,
		Actor:           actor,
	})
	if err != nil {
		rc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
