package handlers

import (
	"net/http"

	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/service"

	"github.com/gin-gonic/gin"
)

// AvailableVehiclesHandler lists unassigned vehicles of ?type=bus|ambulance.
func AvailableVehiclesHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		vs, err := svc.AvailableVehicles(c.Request.Context(), model.VehicleType(c.Query("type")))
		if err != nil {
			writeError(c, err)
			return
		}
		if vs == nil {
			vs = []model.Vehicle{}
		}
		c.JSON(http.StatusOK, vs)
	}
}

func AssignVehicleHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.AssignVehicle(c.Request.Context(), userID(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "vehicle assigned"})
	}
}

func ReleaseVehicleHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.ReleaseVehicle(c.Request.Context(), userID(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "vehicle released"})
	}
}

type outOfStationReq struct {
	OutOfStation bool `json:"is_out_of_station"`
}

func OutOfStationHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outOfStationReq
		if !bind(c, &req) {
			return
		}
		if err := svc.SetOutOfStation(c.Request.Context(), userID(c), c.Param("id"), req.OutOfStation); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_out_of_station": req.OutOfStation})
	}
}

type startTripReq struct {
	VehicleID string `json:"vehicle_id" binding:"required"`
}

func StartTripHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startTripReq
		if !bind(c, &req) {
			return
		}
		t, err := svc.StartTrip(c.Request.Context(), userID(c), req.VehicleID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func EndTripHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.EndTrip(c.Request.Context(), userID(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "trip ended"})
	}
}

func ActiveTripHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svc.ActiveTrip(c.Request.Context(), userID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"trip": t})
	}
}

// TripsHandler retrieves the caller's recent trips
func TripsHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ts, err := svc.MyTrips(c.Request.Context(), userID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if ts == nil {
			ts = []model.Trip{}
		}
		c.JSON(http.StatusOK, ts)
	}
}
