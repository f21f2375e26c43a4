package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/geo"
	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/repository"
)

// GPSReport is one fix sent by a tracking device.
type GPSReport struct {
	IMEI      string     `json:"imei"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Speed     float64    `json:"speed"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// RFIDScan is a rider passing a registered campus scanner.
type RFIDScan struct {
	DeviceTag      string     `json:"rfid_device_id"`
	RegistrationID string     `json:"student_registration_id"`
	StudentName    string     `json:"student_name"`
	Phone          string     `json:"phone"`
	Speed          float64    `json:"speed"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

type IngestResult struct {
	VehicleID string         `json:"vehicle_id"`
	Offence   *model.Offence `json:"offence,omitempty"`
	BookingID string         `json:"booking_id,omitempty"`
	ETA       *float64       `json:"eta_minutes,omitempty"`
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// IngestGPS records a location fix, applies the bus overspeed rule and refreshes the
// ETA of the ambulance's active booking. Writes are not rolled back on a later failure.
func (s *Service) IngestGPS(ctx context.Context, r GPSReport) (IngestResult, error) {
	if r.IMEI == "" {
		return IngestResult{}, apperr.Validationf("imei required")
	}
	if !validCoordinates(r.Latitude, r.Longitude) {
		return IngestResult{}, apperr.Validationf("coordinates out of range")
	}

	v, err := s.repo.GetVehicleByIMEI(ctx, r.IMEI)
	if err != nil {
		return IngestResult{}, lookupErr(err, "vehicle for this IMEI")
	}

	ts := s.now()
	if r.Timestamp != nil {
		ts = r.Timestamp.UTC()
	}
	loc := &model.Location{Lat: r.Latitude, Lng: r.Longitude, Speed: r.Speed, Timestamp: ts}
	if err := s.repo.UpdateVehicleLocation(ctx, v.ID, loc); err != nil {
		return IngestResult{}, fmt.Errorf("update location: %w", err)
	}
	s.cacheLocation(ctx, v.ID, loc)

	res := IngestResult{VehicleID: v.ID}

	if v.Type == model.VehicleBus && r.Speed > s.limits.BusSpeedLimit && v.AssignedTo != nil {
		o, err := s.recordBusOverspeed(ctx, v, loc)
		if err != nil {
			return res, err
		}
		res.Offence = &o
	}

	s.publish(EventVehicleLocation, map[string]any{
		"vehicle_id":     v.ID,
		"vehicle_number": v.Number,
		"vehicle_type":   v.Type,
		"location":       loc,
	})

	if v.Type == model.VehicleAmbulance {
		b, err := s.repo.FindActiveBookingForVehicle(ctx, v.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return res, nil
		case err != nil:
			return res, fmt.Errorf("find active booking: %w", err)
		}
		eta := s.ambulanceETA(loc, b.Pickup)
		if err := s.repo.SetBookingETA(ctx, b.ID, eta); err != nil {
			return res, fmt.Errorf("store eta: %w", err)
		}
		res.BookingID = b.ID
		res.ETA = &eta
		s.publish(EventETAUpdate, map[string]any{
			"booking_id":       b.ID,
			"eta_minutes":      eta,
			"vehicle_location": loc,
		})
	}
	return res, nil
}

func (s *Service) recordBusOverspeed(ctx context.Context, v model.Vehicle, loc *model.Location) (model.Offence, error) {
	var driverName *string
	if d, err := s.repo.GetUser(ctx, *v.AssignedTo); err == nil {
		driverName = model.StringPtr(d.Name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Offence{}, fmt.Errorf("load driver: %w", err)
	}
	lat, lng := loc.Lat, loc.Lng
	o := model.Offence{
		ID:            s.newID(),
		Type:          model.OffenceBusOverspeed,
		DriverID:      v.AssignedTo,
		DriverName:    driverName,
		VehicleID:     model.StringPtr(v.ID),
		VehicleNumber: model.StringPtr(v.Number),
		Speed:         loc.Speed,
		SpeedLimit:    s.limits.BusSpeedLimit,
		Location:      model.OffenceLocation{Lat: &lat, Lng: &lng},
		Timestamp:     s.now(),
	}
	if err := s.repo.InsertOffence(ctx, o); err != nil {
		return model.Offence{}, fmt.Errorf("insert offence: %w", err)
	}
	slog.Warn("overspeeding detected", "vehicle", v.Number, "speed", loc.Speed, "limit", s.limits.BusSpeedLimit)
	return o, nil
}

func (s *Service) ambulanceETA(loc *model.Location, pickup model.Point) float64 {
	d := geo.Distance(loc.Lat, loc.Lng, pickup.Lat, pickup.Lng)
	return geo.Round1(geo.ETA(d, s.limits.AmbulanceSpeed))
}

// IngestRFID checks a rider's speed at a registered scanner. It returns the offence
// recorded, or nil when the rider was within the campus limit.
func (s *Service) IngestRFID(ctx context.Context, scan RFIDScan) (*model.Offence, error) {
	if scan.DeviceTag == "" {
		return nil, apperr.Validationf("rfid_device_id required")
	}
	dev, err := s.repo.GetRFIDDeviceByTag(ctx, scan.DeviceTag)
	if err != nil {
		return nil, lookupErr(err, "RFID device")
	}
	if scan.Speed <= s.limits.CampusSpeedLimit {
		return nil, nil
	}

	var studentID *string
	if scan.RegistrationID != "" {
		if u, err := s.repo.GetUserByRegistrationID(ctx, scan.RegistrationID); err == nil {
			studentID = model.StringPtr(u.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load student: %w", err)
		}
	}
	ts := s.now()
	if scan.Timestamp != nil {
		ts = scan.Timestamp.UTC()
	}
	o := model.Offence{
		ID:                    s.newID(),
		Type:                  model.OffenceStudentSpeed,
		StudentID:             studentID,
		StudentName:           optional(scan.StudentName),
		StudentRegistrationID: optional(scan.RegistrationID),
		Phone:                 optional(scan.Phone),
		Speed:                 scan.Speed,
		SpeedLimit:            s.limits.CampusSpeedLimit,
		Location:              model.OffenceLocation{Name: dev.LocationName},
		RFIDNumber:            model.StringPtr(dev.TagID),
		Timestamp:             ts,
	}
	if err := s.repo.InsertOffence(ctx, o); err != nil {
		return nil, fmt.Errorf("insert offence: %w", err)
	}
	slog.Warn("student speed violation", "student", scan.StudentName, "speed", scan.Speed, "scanner", dev.LocationName)
	return &o, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
