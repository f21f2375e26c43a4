package repository

import (
	"context"
	"database/sql"

	"campus-tracker-service/internal/model"
)

const bookingColumns = `id, requester_id, student_registration_id, student_name, phone, place, place_details,
	pickup_lat, pickup_lng, status, otp, driver_id, driver_name, vehicle_id, vehicle_number, eta_minutes, created_at`

func (r *Repo) InsertBooking(ctx context.Context, b model.Booking) error {
	_, err := r.exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.RequesterID, b.RegistrationID, nullStringPtr(b.StudentName), b.Phone, b.Place, b.PlaceDetails,
		b.Pickup.Lat, b.Pickup.Lng, string(b.Status), nullStringPtr(b.OTP), nullStringPtr(b.DriverID),
		nullStringPtr(b.DriverName), nullStringPtr(b.VehicleID), nullStringPtr(b.VehicleNumber),
		nullFloatPtr(b.ETAMinutes), formatTime(b.CreatedAt))
	return insertErr(err)
}

func (r *Repo) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	row := r.queryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// AcceptBooking assigns the booking to a driver only while it is still pending.
func (r *Repo) AcceptBooking(ctx context.Context, id string, a model.Acceptance) (bool, error) {
	return r.execAffected(ctx, `
		UPDATE bookings
		SET status = ?, driver_id = ?, driver_name = ?, vehicle_id = ?, vehicle_number = ?, otp = ?, eta_minutes = ?
		WHERE id = ? AND status = ?
	`, string(model.BookingAccepted), a.DriverID, a.DriverName, a.VehicleID, a.VehicleNumber, a.OTP,
		nullFloatPtr(a.ETAMinutes), id, string(model.BookingPending))
}

// TransitionBooking moves the booking from one status to another, failing silently
// (false) when the booking is no longer in the expected status.
func (r *Repo) TransitionBooking(ctx context.Context, id string, from, to model.BookingStatus) (bool, error) {
	return r.execAffected(ctx, `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
}

func (r *Repo) SetBookingETA(ctx context.Context, id string, eta float64) error {
	_, err := r.exec(ctx, `UPDATE bookings SET eta_minutes = ? WHERE id = ?`, eta, id)
	return err
}

func (r *Repo) FindActiveBookingForVehicle(ctx context.Context, vehicleID string) (model.Booking, error) {
	row := r.queryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE vehicle_id = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1
	`, vehicleID, string(model.BookingAccepted), string(model.BookingInProgress))
	return scanBooking(row)
}

func (r *Repo) ListBookingsByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	return r.listBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = ?
		ORDER BY created_at DESC LIMIT 100
	`, string(status))
}

func (r *Repo) ListBookingsByPhone(ctx context.Context, phone string) ([]model.Booking, error) {
	return r.listBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE phone = ?
		ORDER BY created_at DESC LIMIT 100
	`, phone)
}

func (r *Repo) CountBookings(ctx context.Context, status model.BookingStatus) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM bookings WHERE status = ?`, string(status))
}

func (r *Repo) listBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func scanBooking(s scanner) (model.Booking, error) {
	var (
		bk                            model.Booking
		status, createdAt             string
		name, otp, driverID, driverNm sql.NullString
		vID, vNumber                  sql.NullString
		eta                           sql.NullFloat64
	)
	err := s.Scan(&bk.ID, &bk.RequesterID, &bk.RegistrationID, &name, &bk.Phone, &bk.Place, &bk.PlaceDetails,
		&bk.Pickup.Lat, &bk.Pickup.Lng, &status, &otp, &driverID, &driverNm, &vID, &vNumber, &eta, &createdAt)
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	bk.StudentName = stringPtr(name)
	bk.Status = model.BookingStatus(status)
	bk.OTP = stringPtr(otp)
	bk.DriverID = stringPtr(driverID)
	bk.DriverName = stringPtr(driverNm)
	bk.VehicleID = stringPtr(vID)
	bk.VehicleNumber = stringPtr(vNumber)
	bk.ETAMinutes = floatPtr(eta)
	bk.CreatedAt = parseTime(createdAt)
	return bk, nil
}
