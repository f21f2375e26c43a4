package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"campus-tracker-service/internal/apperr"
	"campus-tracker-service/internal/auth"
	"campus-tracker-service/internal/cache"
	"campus-tracker-service/internal/geo"
	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/notify"
	"campus-tracker-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSummary = struct {
	sync.Mutex
	total  int
	passed int
	failed int
}{}

func logResult(passed bool) {
	testSummary.Lock()
	defer testSummary.Unlock()
	testSummary.total++
	if passed {
		testSummary.passed++
	} else {
		testSummary.failed++
	}
}

type published struct {
	event   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: event, payload: payload})
}

func (p *recordingPublisher) named(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	ctx   context.Context
	svc   *Service
	repo  *repository.Repo
	kv    *cache.Memory
	pub   *recordingPublisher
	sms   *notify.LogSender
	phone int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo, err := repository.Open(ctx, repository.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	kv := cache.NewMemory()
	sms := notify.NewLogSender()
	pub := &recordingPublisher{}
	svc := NewService(Deps{
		Repo:      repo,
		Cache:     kv,
		Publisher: pub,
		SMS:       sms,
		OTP:       notify.NewOTPStore(kv, sms, 10*time.Minute),
		Tokens:    auth.NewJWT([]byte("test-secret"), time.Hour),
	})
	return &fixture{ctx: ctx, svc: svc, repo: repo, kv: kv, pub: pub, sms: sms, phone: 9000000000}
}

func (f *fixture) addUser(t *testing.T, name string, role model.Role, dt model.VehicleType) model.User {
	t.Helper()
	f.phone++
	u := model.User{
		ID:             uuid.New().String(),
		Name:           name,
		Phone:          fmt.Sprint(f.phone),
		RegistrationID: fmt.Sprintf("REG%d", f.phone),
		PasswordHash:   "unused",
		Role:           role,
		DriverType:     dt,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.repo.CreateUser(f.ctx, u))
	return u
}

func (f *fixture) addVehicle(t *testing.T, number, imei string, vt model.VehicleType) model.Vehicle {
	t.Helper()
	v, err := f.svc.AddVehicle(f.ctx, VehicleRequest{Number: number, IMEI: imei, Barcode: "BC-" + number, Type: vt})
	require.NoError(t, err)
	return v
}

func (f *fixture) driverWith(t *testing.T, name string, vt model.VehicleType, number, imei string) (model.User, model.Vehicle) {
	t.Helper()
	d := f.addUser(t, name, model.RoleDriver, vt)
	v := f.addVehicle(t, number, imei, vt)
	require.NoError(t, f.svc.AssignVehicle(f.ctx, d.ID, v.ID))
	return d, v
}

func (f *fixture) offences(t *testing.T) []model.Offence {
	t.Helper()
	os, err := f.repo.ListOffences(f.ctx, repository.OffenceFilter{})
	require.NoError(t, err)
	return os
}

func TestLocationCacheKey(t *testing.T) {
	cases := []struct {
		name      string
		vehicleID string
		want      string
	}{
		{"Simple vehicle ID", "abc", "vehicle:abc:location"},
		{"UUID vehicle ID", "550e8400-e29b-41d4-a716-446655440000", "vehicle:550e8400-e29b-41d4-a716-446655440000:location"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := cacheKeyLocation(c.vehicleID)
			passed := assert.Equal(t, c.want, got)
			logResult(passed)
		})
	}
}

func TestIngestGPSBusOverspeed(t *testing.T) {
	cases := []struct {
		name         string
		assign       bool
		speed        float64
		wantOffences int
	}{
		{"Overspeeding bus with driver records one offence", true, 55, 1},
		{"Overspeeding bus without driver records nothing", false, 55, 0},
		{"Bus at the limit records nothing", true, 40, 0},
		{"Slow bus records nothing", true, 25, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			var driver model.User
			if c.assign {
				driver, _ = f.driverWith(t, "Ravi", model.VehicleBus, "OD-02-1234", "IMEI-BUS-1")
			} else {
				f.addVehicle(t, "OD-02-1234", "IMEI-BUS-1", model.VehicleBus)
			}

			res, err := f.svc.IngestGPS(f.ctx, GPSReport{IMEI: "IMEI-BUS-1", Latitude: 21.5, Longitude: 85.5, Speed: c.speed})
			require.NoError(t, err)

			os := f.offences(t)
			passed := assert.Len(t, os, c.wantOffences)
			if c.wantOffences == 1 {
				o := os[0]
				passed = assert.Equal(t, model.OffenceBusOverspeed, o.Type) && passed
				passed = assert.Equal(t, 40.0, o.SpeedLimit) && passed
				passed = assert.Equal(t, c.speed, o.Speed) && passed
				require.NotNil(t, o.DriverID)
				passed = assert.Equal(t, driver.ID, *o.DriverID) && passed
				require.NotNil(t, o.DriverName)
				passed = assert.Equal(t, "Ravi", *o.DriverName) && passed
				passed = assert.NotNil(t, res.Offence) && passed
			} else {
				passed = assert.Nil(t, res.Offence) && passed
			}
			passed = assert.Len(t, f.pub.named(EventVehicleLocation), 1) && passed
			logResult(passed)
		})
	}
}

func TestIngestGPSValidation(t *testing.T) {
	f := newFixture(t)
	f.addVehicle(t, "OD-02-1234", "IMEI-BUS-1", model.VehicleBus)

	cases := []struct {
		name   string
		report GPSReport
		kind   apperr.Kind
	}{
		{"Unknown IMEI", GPSReport{IMEI: "nope", Latitude: 1, Longitude: 1}, apperr.NotFound},
		{"Missing IMEI", GPSReport{Latitude: 1, Longitude: 1}, apperr.Validation},
		{"Latitude out of range", GPSReport{IMEI: "IMEI-BUS-1", Latitude: 91, Longitude: 1}, apperr.Validation},
		{"Longitude out of range", GPSReport{IMEI: "IMEI-BUS-1", Latitude: 1, Longitude: -181}, apperr.Validation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.svc.IngestGPS(f.ctx, c.report)
			passed := assert.Error(t, err) && assert.Equal(t, c.kind, apperr.KindOf(err))
			logResult(passed)
		})
	}
}

func TestIngestGPSCachesLocation(t *testing.T) {
	f := newFixture(t)
	v := f.addVehicle(t, "OD-02-1234", "IMEI-BUS-1", model.VehicleBus)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := f.svc.IngestGPS(f.ctx, GPSReport{IMEI: "IMEI-BUS-1", Latitude: 21.5, Longitude: 85.5, Speed: 20, Timestamp: &ts})
	require.NoError(t, err)

	raw, err := f.kv.Get(f.ctx, cacheKeyLocation(v.ID))
	require.NoError(t, err)
	passed := assert.Contains(t, raw, "21.5")

	stored, err := f.repo.GetVehicle(f.ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Location)
	passed = assert.True(t, ts.Equal(stored.Location.Timestamp)) && passed
	passed = assert.Equal(t, 85.5, stored.Location.Lng) && passed
	logResult(passed)
}

func TestAmbulanceBookingLifecycle(t *testing.T) {
	f := newFixture(t)
	student := f.addUser(t, "Asha", model.RoleStudent, "")
	driver, amb := f.driverWith(t, "Kiran", model.VehicleAmbulance, "AMB-01", "IMEI-AMB-1")

	_, err := f.svc.IngestGPS(f.ctx, GPSReport{IMEI: amb.IMEI, Latitude: 21.64, Longitude: 85.59, Speed: 30})
	require.NoError(t, err)

	b, err := f.svc.CreateBooking(f.ctx, student.ID, BookingRequest{
		RegistrationID: student.RegistrationID,
		Phone:          student.Phone,
		Place:          "Hostel 3",
		Pickup:         model.Point{Lat: 21.63, Lng: 85.58},
	})
	require.NoError(t, err)
	require.Equal(t, model.BookingPending, b.Status)
	require.NotNil(t, b.StudentName)
	assert.Equal(t, "Asha", *b.StudentName)
	assert.Nil(t, b.OTP)
	assert.Len(t, f.pub.named(EventNewBooking), 1)

	t.Run("Accept computes ETA and sends OTP", func(t *testing.T) {
		accepted, err := f.svc.AcceptBooking(f.ctx, driver.ID, b.ID)
		require.NoError(t, err)
		want := geo.Round1(geo.ETA(geo.Distance(21.64, 85.59, 21.63, 85.58), 60))
		passed := assert.Equal(t, model.BookingAccepted, accepted.Status)
		require.NotNil(t, accepted.ETAMinutes)
		passed = assert.InDelta(t, want, *accepted.ETAMinutes, 1e-9) && passed
		passed = assert.InDelta(t, 1.5, *accepted.ETAMinutes, 1e-9) && passed
		require.NotNil(t, accepted.OTP)

		sent := f.sms.Sent()
		require.Len(t, sent, 1)
		passed = assert.Equal(t, student.Phone, sent[0].Destination) && passed
		passed = assert.True(t, strings.Contains(sent[0].Body, *accepted.OTP)) && passed

		events := f.pub.named(EventBookingAccepted)
		require.Len(t, events, 1)
		payload, ok := events[0].payload.(model.Booking)
		require.True(t, ok)
		passed = assert.Nil(t, payload.OTP, "broadcast must not carry the code") && passed
		logResult(passed)
	})

	t.Run("Only the requester sees the code", func(t *testing.T) {
		own, err := f.svc.GetBooking(f.ctx, student.ID, b.ID)
		require.NoError(t, err)
		other, err := f.svc.GetBooking(f.ctx, driver.ID, b.ID)
		require.NoError(t, err)
		passed := assert.NotNil(t, own.OTP) && assert.Nil(t, other.OTP)
		logResult(passed)
	})

	t.Run("Wrong OTP leaves booking accepted", func(t *testing.T) {
		_, err := f.svc.VerifyBookingOTP(f.ctx, driver.ID, b.ID, "not-the-code")
		passed := assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		stored, err := f.repo.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		passed = assert.Equal(t, model.BookingAccepted, stored.Status) && passed
		logResult(passed)
	})

	t.Run("Complete before pickup is a conflict", func(t *testing.T) {
		err := f.svc.CompleteBooking(f.ctx, driver.ID, b.ID)
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})

	t.Run("Correct OTP starts the ride", func(t *testing.T) {
		stored, err := f.repo.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		started, err := f.svc.VerifyBookingOTP(f.ctx, driver.ID, b.ID, *stored.OTP)
		require.NoError(t, err)
		logResult(assert.Equal(t, model.BookingInProgress, started.Status))
	})

	t.Run("Telemetry refreshes ETA while in progress", func(t *testing.T) {
		res, err := f.svc.IngestGPS(f.ctx, GPSReport{IMEI: amb.IMEI, Latitude: 21.63, Longitude: 85.58, Speed: 10})
		require.NoError(t, err)
		require.NotNil(t, res.ETA)
		passed := assert.Equal(t, b.ID, res.BookingID)
		passed = assert.Equal(t, 0.0, *res.ETA) && passed
		stored, err := f.repo.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.ETAMinutes)
		passed = assert.Equal(t, 0.0, *stored.ETAMinutes) && passed
		passed = assert.Len(t, f.pub.named(EventETAUpdate), 1) && passed
		logResult(passed)
	})

	t.Run("Abort after pickup is a conflict", func(t *testing.T) {
		err := f.svc.AbortBooking(f.ctx, driver.ID, b.ID)
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})

	t.Run("Complete closes the ride", func(t *testing.T) {
		require.NoError(t, f.svc.CompleteBooking(f.ctx, driver.ID, b.ID))
		stored, err := f.repo.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		passed := assert.Equal(t, model.BookingCompleted, stored.Status)
		passed = assert.Len(t, f.pub.named(EventBookingCompleted), 1) && passed

		err = f.svc.CompleteBooking(f.ctx, driver.ID, b.ID)
		passed = assert.Equal(t, apperr.Conflict, apperr.KindOf(err)) && passed
		logResult(passed)
	})
}

func TestAcceptBookingConflicts(t *testing.T) {
	f := newFixture(t)
	student := f.addUser(t, "Asha", model.RoleStudent, "")
	first, _ := f.driverWith(t, "Kiran", model.VehicleAmbulance, "AMB-01", "IMEI-AMB-1")
	second, _ := f.driverWith(t, "Manoj", model.VehicleAmbulance, "AMB-02", "IMEI-AMB-2")
	noAmbulance := f.addUser(t, "Suresh", model.RoleDriver, model.VehicleAmbulance)

	b, err := f.svc.CreateBooking(f.ctx, student.ID, BookingRequest{Phone: student.Phone, Place: "Library", Pickup: model.Point{Lat: 21.6, Lng: 85.6}})
	require.NoError(t, err)

	t.Run("Driver without an ambulance cannot accept", func(t *testing.T) {
		_, err := f.svc.AcceptBooking(f.ctx, noAmbulance.ID, b.ID)
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})

	t.Run("Second accept loses", func(t *testing.T) {
		accepted, err := f.svc.AcceptBooking(f.ctx, first.ID, b.ID)
		require.NoError(t, err)
		passed := assert.Nil(t, accepted.ETAMinutes, "no fix yet, no estimate")

		_, err = f.svc.AcceptBooking(f.ctx, second.ID, b.ID)
		passed = assert.Equal(t, apperr.Conflict, apperr.KindOf(err)) && passed

		stored, err := f.repo.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.DriverID)
		passed = assert.Equal(t, first.ID, *stored.DriverID) && passed
		logResult(passed)
	})

	t.Run("Other driver cannot act on the booking", func(t *testing.T) {
		err := f.svc.AbortBooking(f.ctx, second.ID, b.ID)
		logResult(assert.Equal(t, apperr.Forbidden, apperr.KindOf(err)))
	})

	t.Run("Requester cannot cancel once accepted", func(t *testing.T) {
		err := f.svc.CancelBooking(f.ctx, student.ID, b.ID)
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})

	t.Run("Assigned driver aborts", func(t *testing.T) {
		require.NoError(t, f.svc.AbortBooking(f.ctx, first.ID, b.ID))
		stored, err := f.repo.GetBooking(f.ctx, b.ID)
		require.NoError(t, err)
		passed := assert.Equal(t, model.BookingCancelled, stored.Status)
		passed = assert.Len(t, f.pub.named(EventBookingCancelled), 1) && passed
		logResult(passed)
	})
}

func TestPendingBookingTransitions(t *testing.T) {
	f := newFixture(t)
	student := f.addUser(t, "Asha", model.RoleStudent, "")
	other := f.addUser(t, "Vikram", model.RoleStudent, "")
	driver, _ := f.driverWith(t, "Kiran", model.VehicleAmbulance, "AMB-01", "IMEI-AMB-1")

	b, err := f.svc.CreateBooking(f.ctx, student.ID, BookingRequest{Phone: student.Phone, Place: "Gate 2", Pickup: model.Point{Lat: 21.6, Lng: 85.6}})
	require.NoError(t, err)

	cases := []struct {
		name string
		run  func() error
		kind apperr.Kind
	}{
		{"Abort from pending", func() error { return f.svc.AbortBooking(f.ctx, driver.ID, b.ID) }, apperr.Conflict},
		{"Complete from pending", func() error { return f.svc.CompleteBooking(f.ctx, driver.ID, b.ID) }, apperr.Conflict},
		{"Cancel by someone else", func() error { return f.svc.CancelBooking(f.ctx, other.ID, b.ID) }, apperr.Forbidden},
		{"Cancel unknown booking", func() error { return f.svc.CancelBooking(f.ctx, student.ID, "missing") }, apperr.NotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			logResult(assert.Equal(t, c.kind, apperr.KindOf(c.run())))
		})
	}

	t.Run("Requester cancels", func(t *testing.T) {
		require.NoError(t, f.svc.CancelBooking(f.ctx, student.ID, b.ID))
		_, err := f.svc.AcceptBooking(f.ctx, driver.ID, b.ID)
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		req  BookingRequest
	}{
		{"Missing place", BookingRequest{Phone: "1", Pickup: model.Point{Lat: 1, Lng: 1}}},
		{"Missing phone", BookingRequest{Place: "x", Pickup: model.Point{Lat: 1, Lng: 1}}},
		{"Bad coordinates", BookingRequest{Place: "x", Phone: "1", Pickup: model.Point{Lat: 100, Lng: 1}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(f.ctx, "u1", c.req)
			logResult(assert.Equal(t, apperr.Validation, apperr.KindOf(err)))
		})
	}
}

func TestTripLifecycle(t *testing.T) {
	f := newFixture(t)
	driver, bus := f.driverWith(t, "Ravi", model.VehicleBus, "OD-02-1234", "IMEI-BUS-1")
	stranger := f.addUser(t, "Mohan", model.RoleDriver, model.VehicleBus)

	trip, err := f.svc.StartTrip(f.ctx, driver.ID, bus.ID)
	require.NoError(t, err)

	t.Run("Second active trip is rejected", func(t *testing.T) {
		_, err := f.svc.StartTrip(f.ctx, driver.ID, bus.ID)
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})

	t.Run("Trip on a vehicle held by someone else is forbidden", func(t *testing.T) {
		_, err := f.svc.StartTrip(f.ctx, stranger.ID, bus.ID)
		logResult(assert.Equal(t, apperr.Forbidden, apperr.KindOf(err)))
	})

	t.Run("Active bus is listed with its location", func(t *testing.T) {
		_, err := f.svc.IngestGPS(f.ctx, GPSReport{IMEI: bus.IMEI, Latitude: 21.5, Longitude: 85.5, Speed: 20})
		require.NoError(t, err)
		board, err := f.svc.ActiveBuses(f.ctx)
		require.NoError(t, err)
		require.Len(t, board.Buses, 1)
		passed := assert.Equal(t, trip.ID, board.Buses[0].TripID)
		require.NotNil(t, board.Buses[0].Location)
		passed = assert.Equal(t, 21.5, board.Buses[0].Location.Lat) && passed
		logResult(passed)
	})

	t.Run("Bus ETA assumes the bus limit", func(t *testing.T) {
		eta, err := f.svc.BusETA(f.ctx, bus.ID, model.Point{Lat: 21.6, Lng: 85.5})
		require.NoError(t, err)
		require.NotNil(t, eta.ETAMinutes)
		d := geo.Distance(21.5, 85.5, 21.6, 85.5)
		passed := assert.InDelta(t, geo.Round1(geo.ETA(d, 40)), *eta.ETAMinutes, 1e-9)
		passed = assert.Equal(t, 40.0, eta.SpeedAssumedKmh) && passed
		logResult(passed)
	})

	t.Run("Ending the trip clears the location", func(t *testing.T) {
		require.NoError(t, f.svc.EndTrip(f.ctx, driver.ID, trip.ID))
		active, err := f.svc.ActiveTrip(f.ctx, driver.ID)
		require.NoError(t, err)
		passed := assert.Nil(t, active)

		v, err := f.repo.GetVehicle(f.ctx, bus.ID)
		require.NoError(t, err)
		passed = assert.Nil(t, v.Location) && passed
		_, err = f.kv.Get(f.ctx, cacheKeyLocation(bus.ID))
		passed = assert.ErrorIs(t, err, cache.ErrMiss) && passed

		err = f.svc.EndTrip(f.ctx, driver.ID, trip.ID)
		passed = assert.Equal(t, apperr.Conflict, apperr.KindOf(err)) && passed
		logResult(passed)
	})

	t.Run("A new trip can start after ending", func(t *testing.T) {
		_, err := f.svc.StartTrip(f.ctx, driver.ID, bus.ID)
		logResult(assert.NoError(t, err))
	})
}

func TestBusBoardAllOutOfStation(t *testing.T) {
	f := newFixture(t)
	driver, bus := f.driverWith(t, "Ravi", model.VehicleBus, "OD-02-1234", "IMEI-BUS-1")
	require.NoError(t, f.svc.SetOutOfStation(f.ctx, driver.ID, bus.ID, true))

	board, err := f.svc.ActiveBuses(f.ctx)
	require.NoError(t, err)
	passed := assert.True(t, board.AllOutOfStation)
	passed = assert.Empty(t, board.Buses) && passed
	logResult(passed)
}

func TestAssignVehicle(t *testing.T) {
	f := newFixture(t)
	a := f.addUser(t, "Ravi", model.RoleDriver, model.VehicleBus)
	b := f.addUser(t, "Mohan", model.RoleDriver, model.VehicleBus)
	bus := f.addVehicle(t, "OD-02-1234", "IMEI-BUS-1", model.VehicleBus)

	require.NoError(t, f.svc.AssignVehicle(f.ctx, a.ID, bus.ID))
	err := f.svc.AssignVehicle(f.ctx, b.ID, bus.ID)
	passed := assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	err = f.svc.ReleaseVehicle(f.ctx, b.ID, bus.ID)
	passed = assert.Equal(t, apperr.Forbidden, apperr.KindOf(err)) && passed

	require.NoError(t, f.svc.ReleaseVehicle(f.ctx, a.ID, bus.ID))
	free, err := f.svc.AvailableVehicles(f.ctx, model.VehicleBus)
	require.NoError(t, err)
	passed = assert.Len(t, free, 1) && passed
	logResult(passed)
}

func TestIngestRFID(t *testing.T) {
	f := newFixture(t)
	student := f.addUser(t, "Asha", model.RoleStudent, "")
	_, err := f.svc.AddRFIDDevice(f.ctx, RFIDDeviceRequest{TagID: "RFID-7", LocationName: "Main Gate"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		scan    RFIDScan
		want    bool
		errKind *apperr.Kind
	}{
		{"Within campus limit", RFIDScan{DeviceTag: "RFID-7", RegistrationID: student.RegistrationID, Speed: 35}, false, nil},
		{"Over campus limit", RFIDScan{DeviceTag: "RFID-7", RegistrationID: student.RegistrationID, StudentName: "Asha", Phone: student.Phone, Speed: 52}, true, nil},
		{"Unknown scanner", RFIDScan{DeviceTag: "RFID-X", Speed: 90}, false, kindPtr(apperr.NotFound)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			o, err := f.svc.IngestRFID(f.ctx, c.scan)
			if c.errKind != nil {
				logResult(assert.Equal(t, *c.errKind, apperr.KindOf(err)))
				return
			}
			require.NoError(t, err)
			if !c.want {
				logResult(assert.Nil(t, o))
				return
			}
			require.NotNil(t, o)
			passed := assert.Equal(t, model.OffenceStudentSpeed, o.Type)
			passed = assert.Equal(t, 40.0, o.SpeedLimit) && passed
			passed = assert.Equal(t, "Main Gate", o.Location.Name) && passed
			require.NotNil(t, o.StudentID)
			passed = assert.Equal(t, student.ID, *o.StudentID) && passed
			logResult(passed)
		})
	}

	mine, err := f.svc.MyOffences(f.ctx, student.ID)
	require.NoError(t, err)
	logResult(assert.Len(t, mine, 1))
}

func kindPtr(k apperr.Kind) *apperr.Kind { return &k }

func TestAccounts(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.Signup(f.ctx, SignupRequest{Name: "Asha", Phone: "9123456789", Password: "secret1", RegistrationID: "21CS001"})
	require.NoError(t, err)
	passed := assert.NotEmpty(t, sess.AccessToken)
	passed = assert.Equal(t, model.RoleStudent, sess.User.Role) && passed
	logResult(passed)

	t.Run("Duplicate phone is a conflict", func(t *testing.T) {
		_, err := f.svc.Signup(f.ctx, SignupRequest{Name: "Other", Phone: "9123456789", Password: "secret1"})
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})

	t.Run("Driver needs a vehicle type", func(t *testing.T) {
		_, err := f.svc.Signup(f.ctx, SignupRequest{Name: "D", Phone: "9000000001", Password: "secret1", Role: model.RoleDriver})
		logResult(assert.Equal(t, apperr.Validation, apperr.KindOf(err)))
	})

	t.Run("Login with wrong password", func(t *testing.T) {
		_, err := f.svc.Login(f.ctx, LoginRequest{Phone: "9123456789", Password: "wrong"})
		logResult(assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err)))
	})

	t.Run("Password reset through OTP", func(t *testing.T) {
		require.NoError(t, f.svc.ForgotPassword(f.ctx, "9123456789"))
		sent := f.sms.Sent()
		require.NotEmpty(t, sent)
		body := sent[len(sent)-1].Body
		code := body[len(body)-6:]

		err := f.svc.ResetPassword(f.ctx, "9123456789", "000000", "newsecret")
		passed := assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		require.NoError(t, f.svc.ResetPassword(f.ctx, "9123456789", code, "newsecret"))

		_, err = f.svc.Login(f.ctx, LoginRequest{Phone: "9123456789", Password: "newsecret"})
		passed = assert.NoError(t, err) && passed
		logResult(passed)
	})

	t.Run("Seeding the admin is idempotent", func(t *testing.T) {
		require.NoError(t, f.svc.SeedAdmin(f.ctx, "admin@campus.edu", "adminpass"))
		require.NoError(t, f.svc.SeedAdmin(f.ctx, "admin@campus.edu", "adminpass"))
		sess, err := f.svc.Login(f.ctx, LoginRequest{Email: "admin@campus.edu", Password: "adminpass"})
		require.NoError(t, err)
		logResult(assert.Equal(t, model.RoleAdmin, sess.User.Role))
	})
}

func TestSeedAdmin(t *testing.T) {
	t.Run("Changed admin email keeps the first admin", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.SeedAdmin(f.ctx, "admin@a.com", "adminpass"))
		require.NoError(t, f.svc.SeedAdmin(f.ctx, "admin@b.com", "otherpass"))

		n, err := f.repo.CountUsers(f.ctx, model.RoleAdmin)
		require.NoError(t, err)
		passed := assert.Equal(t, int64(1), n)
		_, err = f.svc.Login(f.ctx, LoginRequest{Email: "admin@a.com", Password: "adminpass"})
		passed = assert.NoError(t, err) && passed
		logResult(passed)
	})

	t.Run("Reserved phone already taken by a signup", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signup(f.ctx, SignupRequest{Name: "Early", Phone: "0000000000", Password: "secret1", RegistrationID: "ADMIN001"})
		require.NoError(t, err)

		require.NoError(t, f.svc.SeedAdmin(f.ctx, "admin@campus.edu", "adminpass"))
		sess, err := f.svc.Login(f.ctx, LoginRequest{Email: "admin@campus.edu", Password: "adminpass"})
		require.NoError(t, err)
		passed := assert.Equal(t, model.RoleAdmin, sess.User.Role)
		passed = assert.NotEqual(t, "0000000000", sess.User.Phone) && passed

		early, err := f.svc.Login(f.ctx, LoginRequest{Phone: "0000000000", Password: "secret1"})
		require.NoError(t, err)
		passed = assert.Equal(t, model.RoleStudent, early.User.Role) && passed
		logResult(passed)
	})
}

func TestAdminOperations(t *testing.T) {
	f := newFixture(t)
	driver, bus := f.driverWith(t, "Ravi", model.VehicleBus, "OD-02-1234", "IMEI-BUS-1")
	f.addUser(t, "Asha", model.RoleStudent, "")

	t.Run("Duplicate vehicle is a conflict", func(t *testing.T) {
		_, err := f.svc.AddVehicle(f.ctx, VehicleRequest{Number: "OD-99", IMEI: "IMEI-BUS-1", Type: model.VehicleBus})
		logResult(assert.Equal(t, apperr.Conflict, apperr.KindOf(err)))
	})

	t.Run("Unknown vehicle type is rejected", func(t *testing.T) {
		_, err := f.svc.AddVehicle(f.ctx, VehicleRequest{Number: "X", IMEI: "Y", Type: "tram"})
		logResult(assert.Equal(t, apperr.Validation, apperr.KindOf(err)))
	})

	t.Run("Offence can be marked paid", func(t *testing.T) {
		res, err := f.svc.IngestGPS(f.ctx, GPSReport{IMEI: bus.IMEI, Latitude: 21.5, Longitude: 85.5, Speed: 70})
		require.NoError(t, err)
		require.NotNil(t, res.Offence)
		require.NoError(t, f.svc.MarkOffencePaid(f.ctx, res.Offence.ID))
		st, err := f.svc.Stats(f.ctx)
		require.NoError(t, err)
		passed := assert.Equal(t, int64(1), st.TotalOffences)
		passed = assert.Equal(t, int64(0), st.UnpaidOffences) && passed
		logResult(passed)
	})

	t.Run("Deleting a driver releases the vehicle", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteDriver(f.ctx, driver.ID))
		v, err := f.repo.GetVehicle(f.ctx, bus.ID)
		require.NoError(t, err)
		passed := assert.Nil(t, v.AssignedTo)
		err = f.svc.DeleteDriver(f.ctx, driver.ID)
		passed = assert.Equal(t, apperr.NotFound, apperr.KindOf(err)) && passed
		logResult(passed)
	})

	t.Run("Stats count the collections", func(t *testing.T) {
		st, err := f.svc.Stats(f.ctx)
		require.NoError(t, err)
		passed := assert.Equal(t, int64(1), st.TotalStudents)
		passed = assert.Equal(t, int64(0), st.TotalDrivers) && passed
		passed = assert.Equal(t, int64(1), st.TotalBuses) && passed
		logResult(passed)
	})
}

func TestSummary(t *testing.T) {
	t.Logf("======== TEST SUMMARY ========")
	t.Logf("Total tests run: %d", testSummary.total)
	t.Logf("Passed: %d", testSummary.passed)
	t.Logf("Failed: %d", testSummary.failed)
	if testSummary.failed > 0 {
		t.Fail()
	}
}
