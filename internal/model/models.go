package model

import (
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleDriver  Role = "driver"
	RoleAdmin   Role = "admin"
)

type VehicleType string

const (
	VehicleBus       VehicleType = "bus"
	VehicleAmbulance VehicleType = "ambulance"
)

func (t VehicleType) Valid() bool {
	return t == VehicleBus || t == VehicleAmbulance
}

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingAccepted   BookingStatus = "accepted"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

type OffenceType string

const (
	OffenceBusOverspeed OffenceType = "bus_overspeed"
	OffenceStudentSpeed OffenceType = "student_speed"
)

type User struct {
	ID             string      `db:"id" json:"id" bson:"id"`
	Name           string      `db:"name" json:"name" bson:"name"`
	Phone          string      `db:"phone" json:"phone" bson:"phone"`
	Email          string      `db:"email" json:"email,omitempty" bson:"email,omitempty"`
	RegistrationID string      `db:"registration_id" json:"registration_id,omitempty" bson:"registration_id,omitempty"`
	PasswordHash   string      `db:"password" json:"-" bson:"password"`
	Role           Role        `db:"role" json:"role" bson:"role"`
	DriverType     VehicleType `db:"driver_type" json:"driver_type,omitempty" bson:"driver_type,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at" bson:"created_at"`
}

// Location is the last known fix of a vehicle.
type Location struct {
	Lat       float64   `json:"lat" bson:"lat"`
	Lng       float64   `json:"lng" bson:"lng"`
	Speed     float64   `json:"speed" bson:"speed"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

type Point struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

type Vehicle struct {
	ID                 string      `db:"id" json:"id" bson:"id"`
	Number             string      `db:"vehicle_number" json:"vehicle_number" bson:"vehicle_number"`
	IMEI               string      `db:"gps_imei" json:"gps_imei" bson:"gps_imei"`
	Barcode            string      `db:"barcode" json:"barcode" bson:"barcode"`
	Type               VehicleType `db:"vehicle_type" json:"vehicle_type" bson:"vehicle_type"`
	AssignedTo         *string     `db:"assigned_to" json:"assigned_to" bson:"assigned_to"`
	AssignedDriverName *string     `db:"assigned_driver_name" json:"assigned_driver_name" bson:"assigned_driver_name"`
	OutOfStation       bool        `db:"is_out_of_station" json:"is_out_of_station" bson:"is_out_of_station"`
	Location           *Location   `db:"current_location" json:"current_location" bson:"current_location"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at" bson:"created_at"`
}

type Trip struct {
	ID            string      `db:"id" json:"id" bson:"id"`
	VehicleID     string      `db:"vehicle_id" json:"vehicle_id" bson:"vehicle_id"`
	VehicleNumber string      `db:"vehicle_number" json:"vehicle_number" bson:"vehicle_number"`
	VehicleType   VehicleType `db:"vehicle_type" json:"vehicle_type" bson:"vehicle_type"`
	DriverID      string      `db:"driver_id" json:"driver_id" bson:"driver_id"`
	DriverName    string      `db:"driver_name" json:"driver_name" bson:"driver_name"`
	StartTime     time.Time   `db:"start_time" json:"start_time" bson:"start_time"`
	EndTime       *time.Time  `db:"end_time" json:"end_time" bson:"end_time"`
	Active        bool        `db:"is_active" json:"is_active" bson:"is_active"`
}

type Booking struct {
	ID             string        `db:"id" json:"id" bson:"id"`
	RequesterID    string        `db:"requester_id" json:"requester_id" bson:"requester_id"`
	RegistrationID string        `db:"student_registration_id" json:"student_registration_id" bson:"student_registration_id"`
	StudentName    *string       `db:"student_name" json:"student_name" bson:"student_name"`
	Phone          string        `db:"phone" json:"phone" bson:"phone"`
	Place          string        `db:"place" json:"place" bson:"place"`
	PlaceDetails   string        `db:"place_details" json:"place_details,omitempty" bson:"place_details,omitempty"`
	Pickup         Point         `db:"user_location" json:"user_location" bson:"user_location"`
	Status         BookingStatus `db:"status" json:"status" bson:"status"`
	OTP            *string       `db:"otp" json:"otp,omitempty" bson:"otp"`
	DriverID       *string       `db:"driver_id" json:"driver_id" bson:"driver_id"`
	DriverName     *string       `db:"driver_name" json:"driver_name" bson:"driver_name"`
	VehicleID      *string       `db:"vehicle_id" json:"vehicle_id" bson:"vehicle_id"`
	VehicleNumber  *string       `db:"vehicle_number" json:"vehicle_number" bson:"vehicle_number"`
	ETAMinutes     *float64      `db:"eta_minutes" json:"eta_minutes" bson:"eta_minutes"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at" bson:"created_at"`
}

// Redacted returns a copy without the one-time code, for any viewer other than the requester.
func (b Booking) Redacted() Booking {
	b.OTP = nil
	return b
}

// Acceptance holds the fields written when a driver claims a pending booking.
type Acceptance struct {
	DriverID      string
	DriverName    string
	VehicleID     string
	VehicleNumber string
	OTP           string
	ETAMinutes    *float64
}

type OffenceLocation struct {
	Lat  *float64 `json:"lat,omitempty" bson:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty" bson:"lng,omitempty"`
	Name string   `json:"name,omitempty" bson:"name,omitempty"`
}

type Offence struct {
	ID                    string          `db:"id" json:"id" bson:"id"`
	Type                  OffenceType     `db:"offence_type" json:"offence_type" bson:"offence_type"`
	DriverID              *string         `db:"driver_id" json:"driver_id,omitempty" bson:"driver_id,omitempty"`
	DriverName            *string         `db:"driver_name" json:"driver_name,omitempty" bson:"driver_name,omitempty"`
	StudentID             *string         `db:"student_id" json:"student_id,omitempty" bson:"student_id,omitempty"`
	StudentName           *string         `db:"student_name" json:"student_name,omitempty" bson:"student_name,omitempty"`
	StudentRegistrationID *string         `db:"student_registration_id" json:"student_registration_id,omitempty" bson:"student_registration_id,omitempty"`
	Phone                 *string         `db:"phone" json:"phone,omitempty" bson:"phone,omitempty"`
	VehicleID             *string         `db:"vehicle_id" json:"vehicle_id,omitempty" bson:"vehicle_id,omitempty"`
	VehicleNumber         *string         `db:"vehicle_number" json:"vehicle_number,omitempty" bson:"vehicle_number,omitempty"`
	Speed                 float64         `db:"speed" json:"speed" bson:"speed"`
	SpeedLimit            float64         `db:"speed_limit" json:"speed_limit" bson:"speed_limit"`
	Location              OffenceLocation `db:"location" json:"location" bson:"location"`
	RFIDNumber            *string         `db:"rfid_number" json:"rfid_number,omitempty" bson:"rfid_number,omitempty"`
	Timestamp             time.Time       `db:"timestamp" json:"timestamp" bson:"timestamp"`
	Paid                  bool            `db:"is_paid" json:"is_paid" bson:"is_paid"`
}

type RFIDDevice struct {
	ID           string    `db:"id" json:"id" bson:"id"`
	TagID        string    `db:"rfid_id" json:"rfid_id" bson:"rfid_id"`
	LocationName string    `db:"location_name" json:"location_name" bson:"location_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at" bson:"created_at"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalStudents   int64 `json:"total_students"`
	TotalDrivers    int64 `json:"total_drivers"`
	TotalBuses      int64 `json:"total_buses"`
	TotalAmbulances int64 `json:"total_ambulances"`
	ActiveTrips     int64 `json:"active_trips"`
	PendingBookings int64 `json:"pending_bookings"`
	TotalOffences   int64 `json:"total_offences"`
	UnpaidOffences  int64 `json:"unpaid_offences"`
}

func StringPtr(s string) *string {
	return &s
}
