package handlers

import (
	"net/http"
	"strconv"

	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/service"

	"github.com/gin-gonic/gin"
)

func CreateBookingHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.BookingRequest
		if !bind(c, &req) {
			return
		}
		b, err := svc.CreateBooking(c.Request.Context(), userID(c), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, b)
	}
}

func GetBookingHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svc.GetBooking(c.Request.Context(), userID(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

func MyBookingsHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bs, err := svc.MyBookings(c.Request.Context(), userID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, bs)
	}
}

func CancelBookingHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.CancelBooking(c.Request.Context(), userID(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "booking cancelled"})
	}
}

func PendingBookingsHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bs, err := svc.PendingBookings(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, bs)
	}
}

func AcceptBookingHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svc.AcceptBooking(c.Request.Context(), userID(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		// the code goes to the rider by SMS only
		c.JSON(http.StatusOK, b.Redacted())
	}
}

type otpReq struct {
	OTP string `json:"otp" binding:"required"`
}

func VerifyOTPHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req otpReq
		if !bind(c, &req) {
			return
		}
		b, err := svc.VerifyBookingOTP(c.Request.Context(), userID(c), c.Param("id"), req.OTP)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, b.Redacted())
	}
}

func CompleteBookingHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.CompleteBooking(c.Request.Context(), userID(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "booking completed"})
	}
}

func AbortBookingHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.AbortBooking(c.Request.Context(), userID(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "booking aborted"})
	}
}

// ActiveBusesHandler lists buses currently on a trip.
func ActiveBusesHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		board, err := svc.ActiveBuses(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, board)
	}
}

func BusETAHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters required"})
			return
		}
		eta, err := svc.BusETA(c.Request.Context(), c.Param("id"), model.Point{Lat: lat, Lng: lng})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, eta)
	}
}

func MyOffencesHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		os, err := svc.MyOffences(c.Request.Context(), userID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if os == nil {
			os = []model.Offence{}
		}
		c.JSON(http.StatusOK, os)
	}
}
