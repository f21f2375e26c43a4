package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/notify"
	"campus-tracker-service/internal/repository"
)

type BookingRequest struct {
	RegistrationID string      `json:"student_registration_id"`
	Phone          string      `json:"phone"`
	Place          string      `json:"place"`
	PlaceDetails   string      `json:"place_details"`
	Pickup         model.Point `json:"user_location"`
}

// CreateBooking stores a pending ambulance request and notifies every driver.
func (s *Service) CreateBooking(ctx context.Context, requesterID string, req BookingRequest) (model.Booking, error) {
	req.Place = strings.TrimSpace(req.Place)
	switch {
	case req.Place == "":
		return model.Booking{}, apperr.Validationf("place required")
	case req.Phone == "":
		return model.Booking{}, apperr.Validationf("phone required")
	case !validCoordinates(req.Pickup.Lat, req.Pickup.Lng):
		return model.Booking{}, apperr.Validationf("pickup coordinates out of range")
	}

	var studentName *string
	if req.RegistrationID != "" {
		u, err := s.repo.GetUserByRegistrationID(ctx, req.RegistrationID)
		switch {
		case err == nil:
			studentName = model.StringPtr(u.Name)
		case !errors.Is(err, repository.ErrNotFound):
			return model.Booking{}, err
		}
	}

	b := model.Booking{
		ID:             s.newID(),
		RequesterID:    requesterID,
		RegistrationID: req.RegistrationID,
		StudentName:    studentName,
		Phone:          req.Phone,
		Place:          req.Place,
		PlaceDetails:   req.PlaceDetails,
		Pickup:         req.Pickup,
		Status:         model.BookingPending,
		CreatedAt:      s.now(),
	}
	if err := s.repo.InsertBooking(ctx, b); err != nil {
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	s.publish(EventNewBooking, b)
	return b, nil
}

// AcceptBooking lets a driver holding an ambulance claim a pending booking. The claim is a
// compare-and-set on the pending status, so only one of two racing drivers wins.
func (s *Service) AcceptBooking(ctx context.Context, driverID, bookingID string) (model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, lookupErr(err, "booking")
	}
	if b.Status != model.BookingPending {
		return model.Booking{}, apperr.Conflictf("booking no longer available")
	}
	driver, err := s.caller(ctx, driverID)
	if err != nil {
		return model.Booking{}, err
	}
	vehicle, err := s.repo.FindAssignedVehicle(ctx, driverID, model.VehicleAmbulance)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Booking{}, apperr.Conflictf("no ambulance assigned to you")
	}
	if err != nil {
		return model.Booking{}, err
	}

	code, err := notify.GenerateCode()
	if err != nil {
		return model.Booking{}, fmt.Errorf("generate otp: %w", err)
	}
	var eta *float64
	if loc := s.vehicleLocation(ctx, vehicle); loc != nil {
		e := s.ambulanceETA(loc, b.Pickup)
		eta = &e
	}

	ok, err := s.repo.AcceptBooking(ctx, bookingID, model.Acceptance{
		DriverID:      driver.ID,
		DriverName:    driver.Name,
		VehicleID:     vehicle.ID,
		VehicleNumber: vehicle.Number,
		OTP:           code,
		ETAMinutes:    eta,
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("accept booking: %w", err)
	}
	if !ok {
		return model.Booking{}, apperr.Conflictf("booking no longer available")
	}

	msg := fmt.Sprintf("Ambulance %s is on the way. Share OTP %s with the driver at pickup.", vehicle.Number, code)
	if err := s.sms.Send(ctx, b.Phone, msg); err != nil {
		slog.Error("otp delivery failed", "booking", bookingID, "err", err)
	}

	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	s.publish(EventBookingAccepted, updated.Redacted())
	return updated, nil
}

// VerifyBookingOTP starts the ride once the driver presents the rider's code.
func (s *Service) VerifyBookingOTP(ctx context.Context, driverID, bookingID, code string) (model.Booking, error) {
	b, err := s.assignedBooking(ctx, driverID, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status != model.BookingAccepted {
		return model.Booking{}, apperr.Conflictf("booking is %s, not accepted", b.Status)
	}
	if b.OTP == nil || *b.OTP != code {
		return model.Booking{}, apperr.Validationf("invalid OTP")
	}
	if err := s.transition(ctx, b, model.BookingAccepted, model.BookingInProgress); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingInProgress
	return b, nil
}

// CompleteBooking closes a ride that is in progress.
func (s *Service) CompleteBooking(ctx context.Context, driverID, bookingID string) error {
	b, err := s.assignedBooking(ctx, driverID, bookingID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, b, model.BookingInProgress, model.BookingCompleted); err != nil {
		return err
	}
	s.publish(EventBookingCompleted, map[string]any{"booking_id": b.ID})
	return nil
}

// AbortBooking lets the assigned driver drop an accepted booking before pickup.
func (s *Service) AbortBooking(ctx context.Context, driverID, bookingID string) error {
	b, err := s.assignedBooking(ctx, driverID, bookingID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, b, model.BookingAccepted, model.BookingCancelled); err != nil {
		return err
	}
	s.publish(EventBookingCancelled, map[string]any{"booking_id": b.ID})
	return nil
}

// CancelBooking lets the requester withdraw a booking no driver has taken yet.
func (s *Service) CancelBooking(ctx context.Context, requesterID, bookingID string) error {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return lookupErr(err, "booking")
	}
	if b.RequesterID != requesterID {
		return apperr.Forbiddenf("this booking is not yours")
	}
	if err := s.transition(ctx, b, model.BookingPending, model.BookingCancelled); err != nil {
		return err
	}
	s.publish(EventBookingCancelled, map[string]any{"booking_id": b.ID})
	return nil
}

func (s *Service) assignedBooking(ctx context.Context, driverID, bookingID string) (model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, lookupErr(err, "booking")
	}
	if b.DriverID == nil {
		return model.Booking{}, apperr.Conflictf("booking is %s, no driver assigned", b.Status)
	}
	if *b.DriverID != driverID {
		return model.Booking{}, apperr.Forbiddenf("this booking is not assigned to you")
	}
	return b, nil
}

// transition applies from -> to only if the stored status still equals from.
func (s *Service) transition(ctx context.Context, b model.Booking, from, to model.BookingStatus) error {
	if b.Status != from {
		return apperr.Conflictf("cannot move booking from %s to %s", b.Status, to)
	}
	ok, err := s.repo.TransitionBooking(ctx, b.ID, from, to)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if !ok {
		return apperr.Conflictf("booking changed concurrently")
	}
	return nil
}

// GetBooking returns a booking; the code is only visible to the requester.
func (s *Service) GetBooking(ctx context.Context, userID, bookingID string) (model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, lookupErr(err, "booking")
	}
	if b.RequesterID != userID {
		return b.Redacted(), nil
	}
	return b, nil
}

func (s *Service) PendingBookings(ctx context.Context) ([]model.Booking, error) {
	bs, err := s.repo.ListBookingsByStatus(ctx, model.BookingPending)
	if err != nil {
		return nil, err
	}
	for i := range bs {
		bs[i] = bs[i].Redacted()
	}
	return bs, nil
}

func (s *Service) MyBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	u, err := s.caller(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBookingsByPhone(ctx, u.Phone)
}
