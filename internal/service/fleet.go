package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/geo"
	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/repository"
)

func (s *Service) AvailableVehicles(ctx context.Context, vt model.VehicleType) ([]model.Vehicle, error) {
	if !vt.Valid() {
		return nil, apperr.Validationf("unknown vehicle type %q", vt)
	}
	return s.repo.ListVehicles(ctx, vt, true)
}

// AssignVehicle hands a free vehicle to the driver. Two drivers racing for the same
// vehicle cannot both win: the update only matches while it is unassigned.
func (s *Service) AssignVehicle(ctx context.Context, driverID, vehicleID string) error {
	driver, err := s.caller(ctx, driverID)
	if err != nil {
		return err
	}
	v, err := s.repo.GetVehicle(ctx, vehicleID)
	if err != nil {
		return lookupErr(err, "vehicle")
	}
	if v.AssignedTo != nil {
		return apperr.Conflictf("vehicle already assigned")
	}
	ok, err := s.repo.AssignVehicle(ctx, v.ID, driver.ID, driver.Name)
	if err != nil {
		return fmt.Errorf("assign vehicle: %w", err)
	}
	if !ok {
		return apperr.Conflictf("vehicle already assigned")
	}
	return nil
}

func (s *Service) ReleaseVehicle(ctx context.Context, driverID, vehicleID string) error {
	if _, err := s.ownedVehicle(ctx, driverID, vehicleID); err != nil {
		return err
	}
	ok, err := s.repo.ReleaseVehicle(ctx, vehicleID, driverID)
	if err != nil {
		return fmt.Errorf("release vehicle: %w", err)
	}
	if !ok {
		return apperr.Forbiddenf("vehicle not assigned to you")
	}
	return nil
}

func (s *Service) SetOutOfStation(ctx context.Context, driverID, vehicleID string, out bool) error {
	if _, err := s.ownedVehicle(ctx, driverID, vehicleID); err != nil {
		return err
	}
	return s.repo.SetOutOfStation(ctx, vehicleID, out)
}

func (s *Service) ownedVehicle(ctx context.Context, driverID, vehicleID string) (model.Vehicle, error) {
	v, err := s.repo.GetVehicle(ctx, vehicleID)
	if err != nil {
		return model.Vehicle{}, lookupErr(err, "vehicle")
	}
	if v.AssignedTo == nil || *v.AssignedTo != driverID {
		return model.Vehicle{}, apperr.Forbiddenf("vehicle not assigned to you")
	}
	return v, nil
}

// StartTrip opens a trip on a vehicle the driver holds. A driver has at most one
// active trip; the store's unique index backs the check against concurrent starts.
func (s *Service) StartTrip(ctx context.Context, driverID, vehicleID string) (model.Trip, error) {
	driver, err := s.caller(ctx, driverID)
	if err != nil {
		return model.Trip{}, err
	}
	v, err := s.ownedVehicle(ctx, driverID, vehicleID)
	if err != nil {
		return model.Trip{}, err
	}
	_, err = s.repo.GetActiveTrip(ctx, driverID)
	switch {
	case err == nil:
		return model.Trip{}, apperr.Conflictf("you already have an active trip")
	case !errors.Is(err, repository.ErrNotFound):
		return model.Trip{}, err
	}

	t := model.Trip{
		ID:            s.newID(),
		VehicleID:     v.ID,
		VehicleNumber: v.Number,
		VehicleType:   v.Type,
		DriverID:      driver.ID,
		DriverName:    driver.Name,
		StartTime:     s.now(),
		Active:        true,
	}
	if err := s.repo.InsertTrip(ctx, t); err != nil {
		return model.Trip{}, insertErr(err, "you already have an active trip")
	}
	return t, nil
}

// EndTrip closes the driver's trip and clears the vehicle's last fix.
func (s *Service) EndTrip(ctx context.Context, driverID, tripID string) error {
	t, err := s.repo.GetTrip(ctx, tripID)
	if err != nil || t.DriverID != driverID {
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFoundf("trip not found")
		}
		return err
	}
	if !t.Active {
		return apperr.Conflictf("trip already ended")
	}
	ok, err := s.repo.EndTrip(ctx, t.ID, s.now())
	if err != nil {
		return fmt.Errorf("end trip: %w", err)
	}
	if !ok {
		return apperr.Conflictf("trip already ended")
	}
	if err := s.repo.UpdateVehicleLocation(ctx, t.VehicleID, nil); err != nil {
		return fmt.Errorf("clear location: %w", err)
	}
	s.cacheLocation(ctx, t.VehicleID, nil)
	return nil
}

// ActiveTrip returns the driver's open trip, or nil.
func (s *Service) ActiveTrip(ctx context.Context, driverID string) (*model.Trip, error) {
	t, err := s.repo.GetActiveTrip(ctx, driverID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) MyTrips(ctx context.Context, driverID string) ([]model.Trip, error) {
	return s.repo.ListDriverTrips(ctx, driverID)
}

func (s *Service) MyOffences(ctx context.Context, userID string) ([]model.Offence, error) {
	u, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role == model.RoleDriver {
		return s.repo.ListOffences(ctx, repository.OffenceFilter{DriverID: u.ID})
	}
	if u.RegistrationID == "" {
		return nil, nil
	}
	return s.repo.ListOffences(ctx, repository.OffenceFilter{RegistrationID: u.RegistrationID})
}

type ActiveBus struct {
	TripID        string          `json:"trip_id"`
	VehicleID     string          `json:"vehicle_id"`
	VehicleNumber string          `json:"vehicle_number"`
	DriverName    string          `json:"driver_name"`
	Location      *model.Location `json:"location"`
	OutOfStation  bool            `json:"is_out_of_station"`
}

type BusBoard struct {
	Buses           []ActiveBus `json:"buses"`
	AllOutOfStation bool        `json:"all_out_of_station"`
	Message         string      `json:"message,omitempty"`
}

// ActiveBuses lists buses on an active trip that are in station.
func (s *Service) ActiveBuses(ctx context.Context) (BusBoard, error) {
	buses, err := s.repo.ListVehicles(ctx, model.VehicleBus, false)
	if err != nil {
		return BusBoard{}, err
	}
	allOut := true
	byID := make(map[string]model.Vehicle, len(buses))
	for _, v := range buses {
		byID[v.ID] = v
		if !v.OutOfStation {
			allOut = false
		}
	}
	if allOut {
		return BusBoard{Buses: []ActiveBus{}, AllOutOfStation: true, Message: "All buses are out of station"}, nil
	}

	trips, err := s.repo.ListActiveTrips(ctx, model.VehicleBus)
	if err != nil {
		return BusBoard{}, err
	}
	board := BusBoard{Buses: []ActiveBus{}}
	for _, t := range trips {
		v, ok := byID[t.VehicleID]
		if !ok || v.OutOfStation {
			continue
		}
		board.Buses = append(board.Buses, ActiveBus{
			TripID:        t.ID,
			VehicleID:     v.ID,
			VehicleNumber: v.Number,
			DriverName:    t.DriverName,
			Location:      s.vehicleLocation(ctx, v),
		})
	}
	return board, nil
}

type BusETA struct {
	BusLocation     *model.Location `json:"bus_location,omitempty"`
	UserLocation    model.Point     `json:"user_location"`
	DistanceKm      *float64        `json:"distance_km,omitempty"`
	ETAMinutes      *float64        `json:"eta_minutes"`
	SpeedAssumedKmh float64         `json:"speed_assumed_kmh"`
	Message         string          `json:"message,omitempty"`
}

// BusETA estimates arrival of a bus at the user assuming it travels at the bus limit.
func (s *Service) BusETA(ctx context.Context, busID string, user model.Point) (BusETA, error) {
	if !validCoordinates(user.Lat, user.Lng) {
		return BusETA{}, apperr.Validationf("coordinates out of range")
	}
	v, err := s.repo.GetVehicle(ctx, busID)
	if err != nil {
		return BusETA{}, lookupErr(err, "bus")
	}
	res := BusETA{UserLocation: user, SpeedAssumedKmh: s.limits.BusSpeedLimit}
	loc := s.vehicleLocation(ctx, v)
	if loc == nil {
		res.Message = "Bus location not available"
		return res, nil
	}
	d := geo.Distance(loc.Lat, loc.Lng, user.Lat, user.Lng)
	dist := math.Round(d*100) / 100
	eta := geo.Round1(geo.ETA(d, s.limits.BusSpeedLimit))
	res.BusLocation = loc
	res.DistanceKm = &dist
	res.ETAMinutes = &eta
	return res, nil
}

// FleetVehicles returns every bus and ambulance.
func (s *Service) FleetVehicles(ctx context.Context) ([]model.Vehicle, error) {
	var all []model.Vehicle
	for _, vt := range []model.VehicleType{model.VehicleBus, model.VehicleAmbulance} {
		vs, err := s.repo.ListVehicles(ctx, vt, false)
		if err != nil {
			return nil, err
		}
		all = append(all, vs...)
	}
	return all, nil
}
