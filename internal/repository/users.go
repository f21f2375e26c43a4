package repository

import (
	"context"
	"database/sql"

	"campus-tracker-service/internal/model"
)

const userColumns = `id, name, phone, email, registration_id, password, role, driver_type, created_at`

func (r *Repo) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Phone, nullString(u.Email), nullString(u.RegistrationID), u.PasswordHash,
		string(u.Role), nullString(string(u.DriverType)), formatTime(u.CreatedAt))
	return insertErr(err)
}

func (r *Repo) GetUser(ctx context.Context, id string) (model.User, error) {
	return r.getUserBy(ctx, "id", id)
}

func (r *Repo) GetUserByPhone(ctx context.Context, phone string) (model.User, error) {
	return r.getUserBy(ctx, "phone", phone)
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getUserBy(ctx, "email", email)
}

func (r *Repo) GetUserByRegistrationID(ctx context.Context, registrationID string) (model.User, error) {
	return r.getUserBy(ctx, "registration_id", registrationID)
}

func (r *Repo) getUserBy(ctx context.Context, column, value string) (model.User, error) {
	row := r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	return scanUser(row)
}

func (r *Repo) UserExists(ctx context.Context, phone, registrationID string) (bool, error) {
	n, err := r.count(ctx, `
		SELECT COUNT(*) FROM users
		WHERE phone = ? OR (registration_id IS NOT NULL AND registration_id = ?)
	`, phone, registrationID)
	return n > 0, err
}

func (r *Repo) UpdatePassword(ctx context.Context, phone, hash string) (bool, error) {
	return r.execAffected(ctx, `UPDATE users SET password = ? WHERE phone = ?`, hash, phone)
}

func (r *Repo) DeleteUser(ctx context.Context, id string, role model.Role) (bool, error) {
	return r.execAffected(ctx, `DELETE FROM users WHERE id = ? AND role = ?`, id, string(role))
}

func (r *Repo) CountUsers(ctx context.Context, role model.Role) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role))
}

func scanUser(row scanner) (model.User, error) {
	var (
		u                     model.User
		email, regID, drvType sql.NullString
		role, createdAt       string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &email, &regID, &u.PasswordHash, &role, &drvType, &createdAt); err != nil {
		return model.User{}, notFound(err)
	}
	u.Email = email.String
	u.RegistrationID = regID.String
	u.Role = model.Role(role)
	u.DriverType = model.VehicleType(drvType.String)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}
