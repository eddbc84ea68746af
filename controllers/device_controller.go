package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pearleseed/device-hub-sub001/app"
	"github.com/pearleseed/device-hub-sub001/db"
	"github.com/pearleseed/device-hub-sub001/models"
)

type DeviceController struct{ *Srv }

func NewDeviceController(s *Srv) *DeviceController { return &DeviceController{Srv: s} }

// POST /api/devices  (admin)
func (dc *DeviceController) Create(c *gin.Context) {
	var in struct {
		Name   string `json:"name" binding:"required"`
		Serial string `json:"serial" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	d := &models.Device{Name: strings.TrimSpace(in.Name), Serial: strings.TrimSpace(in.Serial)}
	if err := dc.Repo.CreateDevice(c.Request.Context(), d); err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// GET /api/devices?q=&status=available|borrowed|maintenance&page=&size=
func (dc *DeviceController) List(c *gin.Context) {
	q := db.DevicesQuery{
		Q:      c.Query("q"),
		Status: models.DeviceStatus(c.Query("status")),
	}
	if q.Status != "" && !q.Status.Valid() {
		badRequest(c, "unknown status "+string(q.Status))
		return
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := dc.Repo.ListDevices(c.Request.Context(), q)
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/devices/:id
func (dc *DeviceController) Get(c *gin.Context) {
	d, err := dc.Repo.FindDeviceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		dc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"device": d})
}
