package service

import (
	"context"
	"time"

	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/repository"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByRegistrationID(ctx context.Context, registrationID string) (model.User, error)
	UserExists(ctx context.Context, phone, registrationID string) (bool, error)
	UpdatePassword(ctx context.Context, phone, hash string) (bool, error)
	DeleteUser(ctx context.Context, id string, role model.Role) (bool, error)
	CountUsers(ctx context.Context, role model.Role) (int64, error)
}

type VehicleRepo interface {
	InsertVehicle(ctx context.Context, v model.Vehicle) error
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	GetVehicleByIMEI(ctx context.Context, imei string) (model.Vehicle, error)
	VehicleExists(ctx context.Context, number, imei string) (bool, error)
	ListVehicles(ctx context.Context, vt model.VehicleType, unassignedOnly bool) ([]model.Vehicle, error)
	FindAssignedVehicle(ctx context.Context, driverID string, vt model.VehicleType) (model.Vehicle, error)
	AssignVehicle(ctx context.Context, id, driverID, driverName string) (bool, error)
	ReleaseVehicle(ctx context.Context, id, driverID string) (bool, error)
	ReleaseDriverVehicles(ctx context.Context, driverID string) error
	SetOutOfStation(ctx context.Context, id string, out bool) error
	UpdateVehicleLocation(ctx context.Context, id string, loc *model.Location) error
	DeleteVehicle(ctx context.Context, id string) (bool, error)
	CountVehicles(ctx context.Context, vt model.VehicleType) (int64, error)
}

type TripRepo interface {
	InsertTrip(ctx context.Context, t model.Trip) error
	GetTrip(ctx context.Context, id string) (model.Trip, error)
	GetActiveTrip(ctx context.Context, driverID string) (model.Trip, error)
	EndTrip(ctx context.Context, id string, end time.Time) (bool, error)
	ListActiveTrips(ctx context.Context, vt model.VehicleType) ([]model.Trip, error)
	ListDriverTrips(ctx context.Context, driverID string) ([]model.Trip, error)
	CountActiveTrips(ctx context.Context) (int64, error)
}

type BookingRepo interface {
	InsertBooking(ctx context.Context, b model.Booking) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	AcceptBooking(ctx context.Context, id string, a model.Acceptance) (bool, error)
	TransitionBooking(ctx context.Context, id string, from, to model.BookingStatus) (bool, error)
	SetBookingETA(ctx context.Context, id string, eta float64) error
	FindActiveBookingForVehicle(ctx context.Context, vehicleID string) (model.Booking, error)
	ListBookingsByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error)
	ListBookingsByPhone(ctx context.Context, phone string) ([]model.Booking, error)
	CountBookings(ctx context.Context, status model.BookingStatus) (int64, error)
}

type OffenceRepo interface {
	InsertOffence(ctx context.Context, o model.Offence) error
	ListOffences(ctx context.Context, f repository.OffenceFilter) ([]model.Offence, error)
	MarkOffencePaid(ctx context.Context, id string) (bool, error)
	DeleteOffence(ctx context.Context, id string) (bool, error)
	CountOffences(ctx context.Context, unpaidOnly bool) (int64, error)
}

type RFIDRepo interface {
	InsertRFIDDevice(ctx context.Context, d model.RFIDDevice) error
	GetRFIDDeviceByTag(ctx context.Context, tagID string) (model.RFIDDevice, error)
	RFIDDeviceExists(ctx context.Context, tagID string) (bool, error)
	DeleteRFIDDevice(ctx context.Context, id string) (bool, error)
}

// Repo is the persistent store over the campus collections.
type Repo interface {
	UserRepo
	VehicleRepo
	TripRepo
	BookingRepo
	OffenceRepo
	RFIDRepo
	Ping(ctx context.Context) error
	Close() error
}

// Publisher pushes named events to connected realtime clients, best effort.
type Publisher interface {
	Publish(event string, payload any)
}

// Notifier delivers a message to a phone number out of band.
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}

// OTPIssuer issues and checks expiring codes for account recovery.
type OTPIssuer interface {
	Issue(ctx context.Context, destination string) (string, error)
	Verify(ctx context.Context, destination, code string) (bool, error)
}

var (
	_ Repo = (*repository.Repo)(nil)
	_ Repo = (*repository.MongoRepo)(nil)
)
