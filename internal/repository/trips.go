package repository

import (
	"context"
	"database/sql"
	"time"

	"campus-tracker-service/internal/model"
)

const tripColumns = `id, vehicle_id, vehicle_number, vehicle_type, driver_id, driver_name, start_time, end_time, is_active`

func (r *Repo) InsertTrip(ctx context.Context, t model.Trip) error {
	var end sql.NullString
	if t.EndTime != nil {
		end = nullString(formatTime(*t.EndTime))
	}
	_, err := r.exec(ctx, `
		INSERT INTO trips (`+tripColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.VehicleID, t.VehicleNumber, string(t.VehicleType), t.DriverID, t.DriverName,
		formatTime(t.StartTime), end, t.Active)
	return insertErr(err)
}

func (r *Repo) GetTrip(ctx context.Context, id string) (model.Trip, error) {
	row := r.queryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id)
	return scanTrip(row)
}

func (r *Repo) GetActiveTrip(ctx context.Context, driverID string) (model.Trip, error) {
	row := r.queryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE driver_id = ? AND is_active = ?`, driverID, true)
	return scanTrip(row)
}

// EndTrip closes the trip only if it is still active.
func (r *Repo) EndTrip(ctx context.Context, id string, end time.Time) (bool, error) {
	return r.execAffected(ctx, `
		UPDATE trips SET is_active = ?, end_time = ?
		WHERE id = ? AND is_active = ?
	`, false, formatTime(end), id, true)
}

func (r *Repo) ListActiveTrips(ctx context.Context, vt model.VehicleType) ([]model.Trip, error) {
	return r.listTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE is_active = ? AND vehicle_type = ?
		ORDER BY start_time DESC LIMIT 100
	`, true, string(vt))
}

func (r *Repo) ListDriverTrips(ctx context.Context, driverID string) ([]model.Trip, error) {
	return r.listTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE driver_id = ?
		ORDER BY start_time DESC LIMIT 100
	`, driverID)
}

func (r *Repo) CountActiveTrips(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM trips WHERE is_active = ?`, true)
}

func (r *Repo) listTrips(ctx context.Context, query string, args ...any) ([]model.Trip, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func scanTrip(s scanner) (model.Trip, error) {
	var (
		t         model.Trip
		vt, start string
		end       sql.NullString
	)
	err := s.Scan(&t.ID, &t.VehicleID, &t.VehicleNumber, &vt, &t.DriverID, &t.DriverName, &start, &end, &t.Active)
	if err != nil {
		return model.Trip{}, notFound(err)
	}
	t.VehicleType = model.VehicleType(vt)
	t.StartTime = parseTime(start)
	if end.Valid {
		e := parseTime(end.String)
		t.EndTime = &e
	}
	return t, nil
}
