package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/cache"
	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/repository"

	"github.com/google/uuid"
)

// Realtime event names.
const (
	EventNewBooking       = "new_booking"
	EventBookingAccepted  = "booking_accepted"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventVehicleLocation  = "vehicle_location"
	EventETAUpdate        = "eta_update"
)

const locationTTL = 5 * time.Minute

// Limits are the speed constants (km/h) the rules are evaluated against.
type Limits struct {
	BusSpeedLimit    float64
	AmbulanceSpeed   float64
	CampusSpeedLimit float64
}

func DefaultLimits() Limits {
	return Limits{BusSpeedLimit: 40, AmbulanceSpeed: 60, CampusSpeedLimit: 40}
}

type TokenIssuer interface {
	GenerateToken(userID string, role model.Role) (string, error)
}

type Deps struct {
	Repo      Repo
	Cache     cache.Store
	Publisher Publisher
	SMS       Notifier
	OTP       OTPIssuer
	Tokens    TokenIssuer
	Limits    Limits
}

type Service struct {
	repo   Repo
	kv     cache.Store
	pub    Publisher
	sms    Notifier
	otp    OTPIssuer
	tokens TokenIssuer
	limits Limits
	now    func() time.Time
	newID  func() string
}

func NewService(d Deps) *Service {
	if d.Limits == (Limits{}) {
		d.Limits = DefaultLimits()
	}
	return &Service{
		repo:   d.Repo,
		kv:     d.Cache,
		pub:    d.Publisher,
		sms:    d.SMS,
		otp:    d.OTP,
		tokens: d.Tokens,
		limits: d.Limits,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

func (s *Service) Limits() Limits {
	return s.limits
}

func cacheKeyLocation(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:location", vehicleID)
}

// cacheLocation mirrors the last fix into the cache. Failures only log.
func (s *Service) cacheLocation(ctx context.Context, vehicleID string, loc *model.Location) {
	key := cacheKeyLocation(vehicleID)
	if loc == nil {
		if err := s.kv.Del(ctx, key); err != nil {
			slog.Warn("cache delete failed", "key", key, "err", err)
		}
		return
	}
	b, _ := json.Marshal(loc)
	if err := s.kv.Set(ctx, key, string(b), locationTTL); err != nil {
		slog.Warn("cache set failed", "key", key, "err", err)
	}
}

// vehicleLocation reads the cached fix, falling back to the store.
func (s *Service) vehicleLocation(ctx context.Context, v model.Vehicle) *model.Location {
	raw, err := s.kv.Get(ctx, cacheKeyLocation(v.ID))
	if err == nil {
		var loc model.Location
		if err := json.Unmarshal([]byte(raw), &loc); err == nil {
			return &loc
		}
	}
	return v.Location
}

func (s *Service) publish(event string, payload any) {
	if s.pub != nil {
		s.pub.Publish(event, payload)
	}
}

// lookupErr turns a repository miss into a NotFound for the named entity.
func lookupErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFoundf("%s not found", what)
	}
	return err
}

func insertErr(err error, msg string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperr.Wrap(apperr.Conflict, msg, err)
	}
	return err
}

// caller loads the user behind a token subject.
func (s *Service) caller(ctx context.Context, userID string) (model.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.New(apperr.Unauthorized, "user not found")
	}
	return u, err
}

// Ping checks the store and the cache.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := s.kv.Ping(ctx); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}
