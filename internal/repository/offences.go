package repository

import (
	"context"
	"database/sql"

	"campus-tracker-service/internal/model"
)

const offenceColumns = `id, offence_type, driver_id, driver_name, student_id, student_name, student_registration_id,
	phone, vehicle_id, vehicle_number, speed, speed_limit, loc_lat, loc_lng, loc_name, rfid_number, recorded_at, is_paid`

// OffenceFilter narrows ListOffences. Empty fields match everything.
type OffenceFilter struct {
	Type           model.OffenceType
	DriverID       string
	RegistrationID string
}

func (r *Repo) InsertOffence(ctx context.Context, o model.Offence) error {
	_, err := r.exec(ctx, `
		INSERT INTO offences (`+offenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, string(o.Type), nullStringPtr(o.DriverID), nullStringPtr(o.DriverName), nullStringPtr(o.StudentID),
		nullStringPtr(o.StudentName), nullStringPtr(o.StudentRegistrationID), nullStringPtr(o.Phone),
		nullStringPtr(o.VehicleID), nullStringPtr(o.VehicleNumber), o.Speed, o.SpeedLimit,
		nullFloatPtr(o.Location.Lat), nullFloatPtr(o.Location.Lng), nullString(o.Location.Name),
		nullStringPtr(o.RFIDNumber), formatTime(o.Timestamp), o.Paid)
	return insertErr(err)
}

func (r *Repo) ListOffences(ctx context.Context, f OffenceFilter) ([]model.Offence, error) {
	query := `SELECT ` + offenceColumns + ` FROM offences WHERE 1 = 1`
	var args []any
	if f.Type != "" {
		query += ` AND offence_type = ?`
		args = append(args, string(f.Type))
	}
	if f.DriverID != "" {
		query += ` AND driver_id = ?`
		args = append(args, f.DriverID)
	}
	if f.RegistrationID != "" {
		query += ` AND student_registration_id = ?`
		args = append(args, f.RegistrationID)
	}
	query += ` ORDER BY recorded_at DESC LIMIT 1000`

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Offence
	for rows.Next() {
		o, err := scanOffence(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r *Repo) MarkOffencePaid(ctx context.Context, id string) (bool, error) {
	return r.execAffected(ctx, `UPDATE offences SET is_paid = ? WHERE id = ?`, true, id)
}

func (r *Repo) DeleteOffence(ctx context.Context, id string) (bool, error) {
	return r.execAffected(ctx, `DELETE FROM offences WHERE id = ?`, id)
}

func (r *Repo) CountOffences(ctx context.Context, unpaidOnly bool) (int64, error) {
	if unpaidOnly {
		return r.count(ctx, `SELECT COUNT(*) FROM offences WHERE is_paid = ?`, false)
	}
	return r.count(ctx, `SELECT COUNT(*) FROM offences`)
}

func scanOffence(s scanner) (model.Offence, error) {
	var (
		o                                      model.Offence
		typ, recordedAt                        string
		driverID, driverName, studentID        sql.NullString
		studentName, regID, phone              sql.NullString
		vehicleID, vehicleNumber, name, rfidNo sql.NullString
		lat, lng                               sql.NullFloat64
	)
	err := s.Scan(&o.ID, &typ, &driverID, &driverName, &studentID, &studentName, &regID, &phone,
		&vehicleID, &vehicleNumber, &o.Speed, &o.SpeedLimit, &lat, &lng, &name, &rfidNo, &recordedAt, &o.Paid)
	if err != nil {
		return model.Offence{}, notFound(err)
	}
	o.Type = model.OffenceType(typ)
	o.DriverID = stringPtr(driverID)
	o.DriverName = stringPtr(driverName)
	o.StudentID = stringPtr(studentID)
	o.StudentName = stringPtr(studentName)
	o.StudentRegistrationID = stringPtr(regID)
	o.Phone = stringPtr(phone)
	o.VehicleID = stringPtr(vehicleID)
	o.VehicleNumber = stringPtr(vehicleNumber)
	o.Location = model.OffenceLocation{Lat: floatPtr(lat), Lng: floatPtr(lng), Name: name.String}
	o.RFIDNumber = stringPtr(rfidNo)
	o.Timestamp = parseTime(recordedAt)
	return o, nil
}

func (r *Repo) InsertRFIDDevice(ctx context.Context, d model.RFIDDevice) error {
	_, err := r.exec(ctx, `
		INSERT INTO rfid_devices (id, rfid_id, location_name, created_at)
		VALUES (?, ?, ?, ?)
	`, d.ID, d.TagID, d.LocationName, formatTime(d.CreatedAt))
	return insertErr(err)
}

func (r *Repo) GetRFIDDeviceByTag(ctx context.Context, tagID string) (model.RFIDDevice, error) {
	var (
		d         model.RFIDDevice
		createdAt string
	)
	err := r.queryRow(ctx, `
		SELECT id, rfid_id, location_name, created_at FROM rfid_devices WHERE rfid_id = ?
	`, tagID).Scan(&d.ID, &d.TagID, &d.LocationName, &createdAt)
	if err != nil {
		return model.RFIDDevice{}, notFound(err)
	}
	d.CreatedAt = parseTime(createdAt)
	return d, nil
}

func (r *Repo) RFIDDeviceExists(ctx context.Context, tagID string) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM rfid_devices WHERE rfid_id = ?`, tagID)
	return n > 0, err
}

func (r *Repo) DeleteRFIDDevice(ctx context.Context, id string) (bool, error) {
	return r.execAffected(ctx, `DELETE FROM rfid_devices WHERE id = ?`, id)
}
