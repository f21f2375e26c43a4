package handlers

import (
	"context"
	"net/http"

	"campus-tracker-service/internal/service"

	"github.com/gin-gonic/gin"
)

func CreateVehicleHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.VehicleRequest
		if !bind(c, &req) {
			return
		}
		v, err := svc.AddVehicle(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

func CreateRFIDDeviceHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.RFIDDeviceRequest
		if !bind(c, &req) {
			return
		}
		d, err := svc.AddRFIDDevice(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

// ByIDHandler runs an admin action on the :id path parameter and replies with msg.
func ByIDHandler(action func(ctx context.Context, id string) error, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := action(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": msg})
	}
}

func StatsHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svc.Stats(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
