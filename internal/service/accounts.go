package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/auth"
	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/repository"
)

type SignupRequest struct {
	Name           string            `json:"name"`
	Phone          string            `json:"phone"`
	Password       string            `json:"password"`
	RegistrationID string            `json:"registration_id"`
	Email          string            `json:"email"`
	Role           model.Role        `json:"role"`
	DriverType     model.VehicleType `json:"driver_type"`
}

type LoginRequest struct {
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        model.User `json:"user"`
}

// Signup registers a student or driver. Admin accounts are only seeded.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Role == "" {
		req.Role = model.RoleStudent
	}
	switch {
	case req.Name == "" || req.Phone == "":
		return Session{}, apperr.Validationf("name and phone required")
	case len(req.Password) < 6:
		return Session{}, apperr.Validationf("password must be at least 6 characters")
	case req.Role != model.RoleStudent && req.Role != model.RoleDriver:
		return Session{}, apperr.Validationf("role must be student or driver")
	case req.Role == model.RoleDriver && !req.DriverType.Valid():
		return Session{}, apperr.Validationf("driver_type must be bus or ambulance")
	}

	exists, err := s.repo.UserExists(ctx, req.Phone, req.RegistrationID)
	if err != nil {
		return Session{}, err
	}
	if exists {
		return Session{}, apperr.Conflictf("user already exists with this phone or registration ID")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		ID:             s.newID(),
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		RegistrationID: req.RegistrationID,
		PasswordHash:   hash,
		Role:           req.Role,
		CreatedAt:      s.now(),
	}
	if req.Role == model.RoleDriver {
		u.DriverType = req.DriverType
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return Session{}, insertErr(err, "user already exists")
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	var (
		u   model.User
		err error
	)
	switch {
	case req.Email != "":
		u, err = s.repo.GetUserByEmail(ctx, req.Email)
	case req.Phone != "":
		u, err = s.repo.GetUserByPhone(ctx, req.Phone)
	default:
		return Session{}, apperr.Validationf("email or phone required")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	if err != nil {
		return Session{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return Session{}, apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	return s.session(u)
}

func (s *Service) session(u model.User) (Session, error) {
	tok, err := s.tokens.GenerateToken(u.ID, u.Role)
	if err != nil {
		return Session{}, fmt.Errorf("could not generate token: %w", err)
	}
	return Session{AccessToken: tok, TokenType: "bearer", User: u}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (model.User, error) {
	return s.caller(ctx, userID)
}

// ForgotPassword sends a recovery code to the account's phone.
func (s *Service) ForgotPassword(ctx context.Context, phone string) error {
	if _, err := s.repo.GetUserByPhone(ctx, phone); err != nil {
		return lookupErr(err, "user")
	}
	if _, err := s.otp.Issue(ctx, phone); err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, phone, code, newPassword string) error {
	if len(newPassword) < 6 {
		return apperr.Validationf("password must be at least 6 characters")
	}
	ok, err := s.otp.Verify(ctx, phone, code)
	if err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	if !ok {
		return apperr.Validationf("invalid or expired OTP")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.repo.UpdatePassword(ctx, phone, hash)
	if err != nil {
		return err
	}
	if !updated {
		return apperr.NotFoundf("user not found")
	}
	return nil
}

// CheckUser reports whether an account holds phone or registrationID, so a
// reinstalled client can choose between login and signup.
func (s *Service) CheckUser(ctx context.Context, phone, registrationID string) (bool, error) {
	phone = strings.TrimSpace(phone)
	registrationID = strings.TrimSpace(registrationID)
	if phone == "" && registrationID == "" {
		return false, apperr.Validationf("phone or registration_id required")
	}
	return s.repo.UserExists(ctx, phone, registrationID)
}

const (
	adminPhone          = "0000000000"
	adminRegistrationID = "ADMIN001"
)

// SeedAdmin creates the administrator account once. It is a no-op when any admin
// already exists, whatever email it was seeded with.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) error {
	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	admins, err := s.repo.CountUsers(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	if admins > 0 {
		slog.Warn("admin already exists, not seeding", "email", email)
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	id := s.newID()
	phone, regID := adminPhone, adminRegistrationID
	taken, err := s.repo.UserExists(ctx, phone, regID)
	if err != nil {
		return err
	}
	if taken {
		// a signup already holds the reserved identifiers
		phone, regID = "admin-"+id, "ADMIN-"+id
	}
	err = s.repo.CreateUser(ctx, model.User{
		ID:             id,
		Name:           "Admin",
		Phone:          phone,
		Email:          email,
		RegistrationID: regID,
		PasswordHash:   hash,
		Role:           model.RoleAdmin,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("admin user seeded", "email", email, "phone", phone)
	return nil
}
