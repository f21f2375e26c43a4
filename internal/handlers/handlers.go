package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/auth"
	"campus-tracker-service/internal/service"

	"github.com/gin-gonic/gin"
)

var statusByKind = map[apperr.Kind]int{
	apperr.NotFound:     http.StatusNotFound,
	apperr.Conflict:     http.StatusConflict,
	apperr.Forbidden:    http.StatusForbidden,
	apperr.Unauthorized: http.StatusUnauthorized,
	apperr.Validation:   http.StatusBadRequest,
}

// writeError maps a service error to its status and the {"error": msg} body.
func writeError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if status, ok := statusByKind[ae.Kind]; ok {
			c.JSON(status, gin.H{"error": ae.Msg})
			return
		}
	}
	slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func userID(c *gin.Context) string {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return ""
	}
	return claims.UserID
}

// SignupHandler registers a student or driver and returns a session.
func SignupHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.SignupRequest
		if !bind(c, &req) {
			return
		}
		sess, err := svc.Signup(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sess)
	}
}

// LoginHandler handles user login and returns a JWT token
func LoginHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.LoginRequest
		if !bind(c, &req) {
			return
		}
		sess, err := svc.Login(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

func MeHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Me(c.Request.Context(), userID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

type forgotReq struct {
	Phone string `json:"phone" binding:"required"`
}

// CheckUserHandler takes phone and registration_id as query parameters.
func CheckUserHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		exists, err := svc.CheckUser(c.Request.Context(), c.Query("phone"), c.Query("registration_id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": exists})
	}
}

func ForgotPasswordHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req forgotReq
		if !bind(c, &req) {
			return
		}
		if err := svc.ForgotPassword(c.Request.Context(), req.Phone); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent"})
	}
}

type resetReq struct {
	Phone       string `json:"phone" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func ResetPasswordHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetReq
		if !bind(c, &req) {
			return
		}
		if err := svc.ResetPassword(c.Request.Context(), req.Phone, req.OTP, req.NewPassword); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}

// GPSReceiveHandler ingests one fix from a tracking device.
func GPSReceiveHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var report service.GPSReport
		if !bind(c, &report) {
			return
		}
		res, err := svc.IngestGPS(c.Request.Context(), report)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "result": res})
	}
}

// RFIDScanHandler checks a rider's speed reported by a campus scanner.
func RFIDScanHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var scan service.RFIDScan
		if !bind(c, &scan) {
			return
		}
		o, err := svc.IngestRFID(c.Request.Context(), scan)
		if err != nil {
			writeError(c, err)
			return
		}
		if o == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "offence_recorded": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "offence_recorded", "offence_recorded": true, "offence": o})
	}
}

// HealthHandler reports whether the store answers.
func HealthHandler(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
