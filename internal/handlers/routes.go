package handlers

import (
	"campus-tracker-service/internal/auth"
	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/service"

	"github.com/gin-gonic/gin"
)

// Register mounts every API route on api.
func Register(api *gin.RouterGroup, svc *service.Service, jwt *auth.JWTService) {
	api.GET("/health", HealthHandler(svc))

	// device endpoints authenticate by IMEI / scanner tag
	api.POST("/gps/receive", GPSReceiveHandler(svc))
	api.POST("/rfid/scan", RFIDScanHandler(svc))

	authn := api.Group("/auth")
	{
		authn.POST("/signup", SignupHandler(svc))
		authn.POST("/login", LoginHandler(svc))
		authn.POST("/check-user", CheckUserHandler(svc))
		authn.POST("/forgot-password", ForgotPasswordHandler(svc))
		authn.POST("/reset-password", ResetPasswordHandler(svc))
		authn.GET("/me", auth.JWTMiddleware(jwt), MeHandler(svc))
	}

	public := api.Group("/public", auth.JWTMiddleware(jwt))
	{
		public.GET("/buses/active", ActiveBusesHandler(svc))
		public.GET("/buses/:id/eta", BusETAHandler(svc))
		public.GET("/offences/mine", MyOffencesHandler(svc))

		students := public.Group("", auth.Require(model.RoleStudent))
		students.POST("/bookings", CreateBookingHandler(svc))
		students.GET("/bookings/mine", MyBookingsHandler(svc))
		students.POST("/bookings/:id/cancel", CancelBookingHandler(svc))

		public.GET("/bookings/:id", GetBookingHandler(svc))
	}

	driver := api.Group("/driver", auth.JWTMiddleware(jwt), auth.Require(model.RoleDriver))
	{
		driver.GET("/vehicles/available", AvailableVehiclesHandler(svc))
		driver.POST("/vehicles/:id/assign", AssignVehicleHandler(svc))
		driver.POST("/vehicles/:id/release", ReleaseVehicleHandler(svc))
		driver.POST("/vehicles/:id/out-of-station", OutOfStationHandler(svc))

		driver.POST("/trips", StartTripHandler(svc))
		driver.GET("/trips", TripsHandler(svc))
		driver.GET("/trips/active", ActiveTripHandler(svc))
		driver.POST("/trips/:id/end", EndTripHandler(svc))

		driver.GET("/bookings/pending", PendingBookingsHandler(svc))
		driver.POST("/bookings/:id/accept", AcceptBookingHandler(svc))
		driver.POST("/bookings/:id/verify-otp", VerifyOTPHandler(svc))
		driver.POST("/bookings/:id/complete", CompleteBookingHandler(svc))
		driver.POST("/bookings/:id/abort", AbortBookingHandler(svc))

		driver.GET("/offences", MyOffencesHandler(svc))
	}

	admin := api.Group("/admin", auth.JWTMiddleware(jwt), auth.Require(model.RoleAdmin))
	{
		admin.GET("/stats", StatsHandler(svc))
		admin.POST("/vehicles", CreateVehicleHandler(svc))
		admin.DELETE("/vehicles/:id", ByIDHandler(svc.DeleteVehicle, "vehicle deleted"))
		admin.POST("/rfid-devices", CreateRFIDDeviceHandler(svc))
		admin.DELETE("/rfid-devices/:id", ByIDHandler(svc.DeleteRFIDDevice, "RFID device deleted"))
		admin.POST("/offences/:id/pay", ByIDHandler(svc.MarkOffencePaid, "offence marked as paid"))
		admin.DELETE("/offences/:id", ByIDHandler(svc.DeleteOffence, "offence deleted"))
		admin.DELETE("/students/:id", ByIDHandler(svc.DeleteStudent, "student deleted"))
		admin.DELETE("/drivers/:id", ByIDHandler(svc.DeleteDriver, "driver deleted"))
	}
}
