package service

import (
	"context"
	"strings"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/model"
)

type VehicleRequest struct {
	Number  string            `json:"vehicle_number"`
	IMEI    string            `json:"gps_imei"`
	Barcode string            `json:"barcode"`
	Type    model.VehicleType `json:"vehicle_type"`
}

type RFIDDeviceRequest struct {
	TagID        string `json:"rfid_id"`
	LocationName string `json:"location_name"`
}

func (s *Service) AddVehicle(ctx context.Context, req VehicleRequest) (model.Vehicle, error) {
	req.Number = strings.TrimSpace(req.Number)
	req.IMEI = strings.TrimSpace(req.IMEI)
	if req.Number == "" || req.IMEI == "" {
		return model.Vehicle{}, apperr.Validationf("vehicle_number and gps_imei required")
	}
	if !req.Type.Valid() {
		return model.Vehicle{}, apperr.Validationf("vehicle_type must be bus or ambulance")
	}
	exists, err := s.repo.VehicleExists(ctx, req.Number, req.IMEI)
	if err != nil {
		return model.Vehicle{}, err
	}
	if exists {
		return model.Vehicle{}, apperr.Conflictf("vehicle with this number or IMEI already exists")
	}
	v := model.Vehicle{
		ID:        s.newID(),
		Number:    req.Number,
		IMEI:      req.IMEI,
		Barcode:   req.Barcode,
		Type:      req.Type,
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertVehicle(ctx, v); err != nil {
		return model.Vehicle{}, insertErr(err, "vehicle with this number or IMEI already exists")
	}
	return v, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteVehicle(ctx, id)
	return matched(ok, err, "vehicle")
}

func (s *Service) AddRFIDDevice(ctx context.Context, req RFIDDeviceRequest) (model.RFIDDevice, error) {
	req.TagID = strings.TrimSpace(req.TagID)
	if req.TagID == "" || strings.TrimSpace(req.LocationName) == "" {
		return model.RFIDDevice{}, apperr.Validationf("rfid_id and location_name required")
	}
	exists, err := s.repo.RFIDDeviceExists(ctx, req.TagID)
	if err != nil {
		return model.RFIDDevice{}, err
	}
	if exists {
		return model.RFIDDevice{}, apperr.Conflictf("RFID device already exists")
	}
	d := model.RFIDDevice{
		ID:           s.newID(),
		TagID:        req.TagID,
		LocationName: req.LocationName,
		CreatedAt:    s.now(),
	}
	if err := s.repo.InsertRFIDDevice(ctx, d); err != nil {
		return model.RFIDDevice{}, insertErr(err, "RFID device already exists")
	}
	return d, nil
}

func (s *Service) DeleteRFIDDevice(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteRFIDDevice(ctx, id)
	return matched(ok, err, "RFID device")
}

func (s *Service) MarkOffencePaid(ctx context.Context, id string) error {
	ok, err := s.repo.MarkOffencePaid(ctx, id)
	return matched(ok, err, "offence")
}

func (s *Service) DeleteOffence(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteOffence(ctx, id)
	return matched(ok, err, "offence")
}

func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	ok, err := s.repo.DeleteUser(ctx, id, model.RoleStudent)
	return matched(ok, err, "student")
}

// DeleteDriver removes the driver and frees any vehicle they held.
func (s *Service) DeleteDriver(ctx context.Context, id string) error {
	if err := s.repo.ReleaseDriverVehicles(ctx, id); err != nil {
		return err
	}
	ok, err := s.repo.DeleteUser(ctx, id, model.RoleDriver)
	return matched(ok, err, "driver")
}

// matched reports a NotFound for what when the write touched nothing.
func matched(ok bool, err error, what string) error {
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFoundf("%s not found", what)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	var (
		st  model.Stats
		err error
	)
	if st.TotalStudents, err = s.repo.CountUsers(ctx, model.RoleStudent); err != nil {
		return model.Stats{}, err
	}
	if st.TotalDrivers, err = s.repo.CountUsers(ctx, model.RoleDriver); err != nil {
		return model.Stats{}, err
	}
	if st.TotalBuses, err = s.repo.CountVehicles(ctx, model.VehicleBus); err != nil {
		return model.Stats{}, err
	}
	if st.TotalAmbulances, err = s.repo.CountVehicles(ctx, model.VehicleAmbulance); err != nil {
		return model.Stats{}, err
	}
	if st.ActiveTrips, err = s.repo.CountActiveTrips(ctx); err != nil {
		return model.Stats{}, err
	}
	if st.PendingBookings, err = s.repo.CountBookings(ctx, model.BookingPending); err != nil {
		return model.Stats{}, err
	}
	if st.TotalOffences, err = s.repo.CountOffences(ctx, false); err != nil {
		return model.Stats{}, err
	}
	if st.UnpaidOffences, err = s.repo.CountOffences(ctx, true); err != nil {
		return model.Stats{}, err
	}
	return st, nil
}
