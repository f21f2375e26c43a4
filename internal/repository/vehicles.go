package repository

import (
	"context"
	"database/sql"

	"campus-tracker-service/internal/model"
)

const vehicleColumns = `id, vehicle_number, gps_imei, barcode, vehicle_type, assigned_to, assigned_driver_name,
	is_out_of_station, loc_lat, loc_lng, loc_speed, loc_timestamp, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repo) InsertVehicle(ctx context.Context, v model.Vehicle) error {
	_, err := r.exec(ctx, `
		INSERT INTO vehicles (`+vehicleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, NULL, ?)
	`, v.ID, v.Number, v.IMEI, v.Barcode, string(v.Type), nullStringPtr(v.AssignedTo),
		nullStringPtr(v.AssignedDriverName), v.OutOfStation, formatTime(v.CreatedAt))
	return insertErr(err)
}

func (r *Repo) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	row := r.queryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
	return scanVehicle(row)
}

func (r *Repo) GetVehicleByIMEI(ctx context.Context, imei string) (model.Vehicle, error) {
	row := r.queryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE gps_imei = ?`, imei)
	return scanVehicle(row)
}

func (r *Repo) VehicleExists(ctx context.Context, number, imei string) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM vehicles WHERE vehicle_number = ? OR gps_imei = ?`, number, imei)
	return n > 0, err
}

// ListVehicles returns vehicles of the given type, optionally only those without a driver.
func (r *Repo) ListVehicles(ctx context.Context, vt model.VehicleType, unassignedOnly bool) ([]model.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE vehicle_type = ?`
	if unassignedOnly {
		query += ` AND assigned_to IS NULL`
	}
	query += ` ORDER BY vehicle_number LIMIT 100`
	rows, err := r.query(ctx, query, string(vt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r *Repo) FindAssignedVehicle(ctx context.Context, driverID string, vt model.VehicleType) (model.Vehicle, error) {
	row := r.queryRow(ctx, `
		SELECT `+vehicleColumns+` FROM vehicles
		WHERE assigned_to = ? AND vehicle_type = ?
		LIMIT 1
	`, driverID, string(vt))
	return scanVehicle(row)
}

// AssignVehicle claims the vehicle only if no driver holds it.
func (r *Repo) AssignVehicle(ctx context.Context, id, driverID, driverName string) (bool, error) {
	return r.execAffected(ctx, `
		UPDATE vehicles SET assigned_to = ?, assigned_driver_name = ?
		WHERE id = ? AND assigned_to IS NULL
	`, driverID, driverName, id)
}

// ReleaseVehicle clears the assignment only if driverID holds the vehicle.
func (r *Repo) ReleaseVehicle(ctx context.Context, id, driverID string) (bool, error) {
	return r.execAffected(ctx, `
		UPDATE vehicles SET assigned_to = NULL, assigned_driver_name = NULL
		WHERE id = ? AND assigned_to = ?
	`, id, driverID)
}

func (r *Repo) ReleaseDriverVehicles(ctx context.Context, driverID string) error {
	_, err := r.exec(ctx, `
		UPDATE vehicles SET assigned_to = NULL, assigned_driver_name = NULL
		WHERE assigned_to = ?
	`, driverID)
	return err
}

func (r *Repo) SetOutOfStation(ctx context.Context, id string, out bool) error {
	_, err := r.exec(ctx, `UPDATE vehicles SET is_out_of_station = ? WHERE id = ?`, out, id)
	return err
}

// UpdateVehicleLocation overwrites the last fix. A nil location clears it.
func (r *Repo) UpdateVehicleLocation(ctx context.Context, id string, loc *model.Location) error {
	if loc == nil {
		_, err := r.exec(ctx, `
			UPDATE vehicles SET loc_lat = NULL, loc_lng = NULL, loc_speed = NULL, loc_timestamp = NULL
			WHERE id = ?
		`, id)
		return err
	}
	_, err := r.exec(ctx, `
		UPDATE vehicles SET loc_lat = ?, loc_lng = ?, loc_speed = ?, loc_timestamp = ?
		WHERE id = ?
	`, loc.Lat, loc.Lng, loc.Speed, formatTime(loc.Timestamp), id)
	return err
}

func (r *Repo) DeleteVehicle(ctx context.Context, id string) (bool, error) {
	return r.execAffected(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
}

func (r *Repo) CountVehicles(ctx context.Context, vt model.VehicleType) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM vehicles WHERE vehicle_type = ?`, string(vt))
}

func scanVehicle(s scanner) (model.Vehicle, error) {
	var (
		v                        model.Vehicle
		vt, createdAt            string
		assignedTo, assignedName sql.NullString
		lat, lng, speed          sql.NullFloat64
		locTimestamp             sql.NullString
	)
	err := s.Scan(&v.ID, &v.Number, &v.IMEI, &v.Barcode, &vt, &assignedTo, &assignedName,
		&v.OutOfStation, &lat, &lng, &speed, &locTimestamp, &createdAt)
	if err != nil {
		return model.Vehicle{}, notFound(err)
	}
	v.Type = model.VehicleType(vt)
	v.AssignedTo = stringPtr(assignedTo)
	v.AssignedDriverName = stringPtr(assignedName)
	v.CreatedAt = parseTime(createdAt)
	if lat.Valid && lng.Valid {
		v.Location = &model.Location{
			Lat:       lat.Float64,
			Lng:       lng.Float64,
			Speed:     speed.Float64,
			Timestamp: parseTime(locTimestamp.String),
		}
	}
	return v, nil
}
