package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
)

type BorrowController struct{ *Srv }

func NewBorrowController(s *Srv) *BorrowController { return &BorrowController{Srv: s} }

type createBorrowReq struct {
	DeviceID  string `json:"deviceId" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	Reason    string `json:"reason"`
}

// POST /api/borrows
func (bc *BorrowController) Create(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var in createBorrowReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := parseDate(in.StartDate)
	if err != nil {
		badRequest(c, "startDate: "+err.Error())
		return
	}
	end, err := parseDate(in.EndDate)
	if err != nil {
		badRequest(c, "endDate: "+err.Error())
		return
	}

	b, err := bc.Res.CreateBorrow(c.Request.Context(), reservation.CreateBorrow{
		DeviceID: in.DeviceID,
		Start:    start,
		End:      end,
		Reason:   in.Reason,
		Actor:    actor,
	})
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
}

// PATCH /api/borrows/:id/status
func (bc *BorrowController) SetStatus(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var in statusReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	b, err := bc.Res.SetBorrowStatus(c.Request.Context(), reservation.SetBorrowStatus{
		RequestID: c.Param("id"),
		Target:    models.BorrowStatus(in.Status),
		Actor:     actor,
	})
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /api/borrows/:id
func (bc *BorrowController) Get(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	d, err := bc.Res.GetBorrow(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/borrows?deviceId=&userId=&status=pending,approved&from=&to=&page=&size=
func (bc *BorrowController) List(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	f := reservation.BorrowFilter{
		DeviceID: c.Query("deviceId"),
		UserID:   c.Query("userId"),
	}
	if v := c.Query("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, models.BorrowStatus(s))
			}
		}
	}
	var err error
	if f.From, err = optionalDate(c.Query("from")); err != nil {
		badRequest(c, "from: "+err.Error())
		return
	}
	if f.To, err = optionalDate(c.Query("to")); err != nil {
		badRequest(c, "to: "+err.Error())
		return
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))

	page, err := bc.Res.ListBorrows(c.Request.Context(), f, actor)
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseDate(s)
}
