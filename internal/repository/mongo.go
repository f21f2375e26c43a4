package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-tracker-service/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores the campus collections as documents, one collection per entity.
type MongoRepo struct {
	client *mongo.Client
	db     *mongo.Database
}

func OpenMongo(ctx context.Context, uri, dbName string) (*MongoRepo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	r := &MongoRepo{client: client, db: client.Database(dbName)}
	if err := r.Init(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return r, nil
}

func (r *MongoRepo) users() *mongo.Collection    { return r.db.Collection("users") }
func (r *MongoRepo) vehicles() *mongo.Collection { return r.db.Collection("vehicles") }
func (r *MongoRepo) trips() *mongo.Collection    { return r.db.Collection("trips") }
func (r *MongoRepo) bookings() *mongo.Collection { return r.db.Collection("bookings") }
func (r *MongoRepo) offences() *mongo.Collection { return r.db.Collection("offences") }
func (r *MongoRepo) devices() *mongo.Collection  { return r.db.Collection("rfid_devices") }

// Init creates the unique indexes the service relies on.
func (r *MongoRepo) Init(ctx context.Context) error {
	unique := func(c *mongo.Collection, field string, sparse bool) error {
		opts := options.Index().SetUnique(true)
		if sparse {
			opts.SetSparse(true)
		}
		_, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}, Options: opts})
		return err
	}
	for _, ix := range []struct {
		c      *mongo.Collection
		field  string
		sparse bool
	}{
		{r.users(), "id", false},
		{r.users(), "phone", false},
		{r.users(), "email", true},
		{r.users(), "registration_id", true},
		{r.vehicles(), "id", false},
		{r.vehicles(), "vehicle_number", false},
		{r.vehicles(), "gps_imei", false},
		{r.trips(), "id", false},
		{r.bookings(), "id", false},
		{r.offences(), "id", false},
		{r.devices(), "id", false},
		{r.devices(), "rfid_id", false},
	} {
		if err := unique(ix.c, ix.field, ix.sparse); err != nil {
			return err
		}
	}
	_, err := r.trips().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "driver_id", Value: 1}},
		Options: options.Index().SetUnique(true).
			SetPartialFilterExpression(bson.M{"is_active": true}),
	})
	return err
}

func (r *MongoRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func mongoInsertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter any, opts ...*options.FindOneOptions) (T, error) {
	var out T
	err := c.FindOne(ctx, filter, opts...).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, ErrNotFound
	}
	return out, err
}

func findMany[T any](ctx context.Context, c *mongo.Collection, filter any, sortField string, limit int64) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: -1}}).SetLimit(limit)
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func updateMatched(ctx context.Context, c *mongo.Collection, filter, set bson.M) (bool, error) {
	res, err := c.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func deleteOne(ctx context.Context, c *mongo.Collection, filter bson.M) (bool, error) {
	res, err := c.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// users

func (r *MongoRepo) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.users().InsertOne(ctx, u)
	return mongoInsertErr(err)
}

func (r *MongoRepo) GetUser(ctx context.Context, id string) (model.User, error) {
	return findOne[model.User](ctx, r.users(), bson.M{"id": id})
}

func (r *MongoRepo) GetUserByPhone(ctx context.Context, phone string) (model.User, error) {
	return findOne[model.User](ctx, r.users(), bson.M{"phone": phone})
}

func (r *MongoRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return findOne[model.User](ctx, r.users(), bson.M{"email": email})
}

func (r *MongoRepo) GetUserByRegistrationID(ctx context.Context, registrationID string) (model.User, error) {
	return findOne[model.User](ctx, r.users(), bson.M{"registration_id": registrationID})
}

func (r *MongoRepo) UserExists(ctx context.Context, phone, registrationID string) (bool, error) {
	or := bson.A{bson.M{"phone": phone}}
	if registrationID != "" {
		or = append(or, bson.M{"registration_id": registrationID})
	}
	n, err := r.users().CountDocuments(ctx, bson.M{"$or": or})
	return n > 0, err
}

func (r *MongoRepo) UpdatePassword(ctx context.Context, phone, hash string) (bool, error) {
	return updateMatched(ctx, r.users(), bson.M{"phone": phone}, bson.M{"password": hash})
}

func (r *MongoRepo) DeleteUser(ctx context.Context, id string, role model.Role) (bool, error) {
	return deleteOne(ctx, r.users(), bson.M{"id": id, "role": role})
}

func (r *MongoRepo) CountUsers(ctx context.Context, role model.Role) (int64, error) {
	return r.users().CountDocuments(ctx, bson.M{"role": role})
}

// vehicles

func (r *MongoRepo) InsertVehicle(ctx context.Context, v model.Vehicle) error {
	_, err := r.vehicles().InsertOne(ctx, v)
	return mongoInsertErr(err)
}

func (r *MongoRepo) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	return findOne[model.Vehicle](ctx, r.vehicles(), bson.M{"id": id})
}

func (r *MongoRepo) GetVehicleByIMEI(ctx context.Context, imei string) (model.Vehicle, error) {
	return findOne[model.Vehicle](ctx, r.vehicles(), bson.M{"gps_imei": imei})
}

func (r *MongoRepo) VehicleExists(ctx context.Context, number, imei string) (bool, error) {
	n, err := r.vehicles().CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"vehicle_number": number},
		bson.M{"gps_imei": imei},
	}})
	return n > 0, err
}

func (r *MongoRepo) ListVehicles(ctx context.Context, vt model.VehicleType, unassignedOnly bool) ([]model.Vehicle, error) {
	filter := bson.M{"vehicle_type": vt}
	if unassignedOnly {
		filter["assigned_to"] = nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "vehicle_number", Value: 1}}).SetLimit(100)
	cur, err := r.vehicles().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []model.Vehicle
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepo) FindAssignedVehicle(ctx context.Context, driverID string, vt model.VehicleType) (model.Vehicle, error) {
	return findOne[model.Vehicle](ctx, r.vehicles(), bson.M{"assigned_to": driverID, "vehicle_type": vt})
}

func (r *MongoRepo) AssignVehicle(ctx context.Context, id, driverID, driverName string) (bool, error) {
	return updateMatched(ctx, r.vehicles(),
		bson.M{"id": id, "assigned_to": nil},
		bson.M{"assigned_to": driverID, "assigned_driver_name": driverName})
}

func (r *MongoRepo) ReleaseVehicle(ctx context.Context, id, driverID string) (bool, error) {
	return updateMatched(ctx, r.vehicles(),
		bson.M{"id": id, "assigned_to": driverID},
		bson.M{"assigned_to": nil, "assigned_driver_name": nil})
}

func (r *MongoRepo) ReleaseDriverVehicles(ctx context.Context, driverID string) error {
	_, err := r.vehicles().UpdateMany(ctx, bson.M{"assigned_to": driverID},
		bson.M{"$set": bson.M{"assigned_to": nil, "assigned_driver_name": nil}})
	return err
}

func (r *MongoRepo) SetOutOfStation(ctx context.Context, id string, out bool) error {
	_, err := updateMatched(ctx, r.vehicles(), bson.M{"id": id}, bson.M{"is_out_of_station": out})
	return err
}

func (r *MongoRepo) UpdateVehicleLocation(ctx context.Context, id string, loc *model.Location) error {
	_, err := updateMatched(ctx, r.vehicles(), bson.M{"id": id}, bson.M{"current_location": loc})
	return err
}

func (r *MongoRepo) DeleteVehicle(ctx context.Context, id string) (bool, error) {
	return deleteOne(ctx, r.vehicles(), bson.M{"id": id})
}

func (r *MongoRepo) CountVehicles(ctx context.Context, vt model.VehicleType) (int64, error) {
	return r.vehicles().CountDocuments(ctx, bson.M{"vehicle_type": vt})
}

// trips

func (r *MongoRepo) InsertTrip(ctx context.Context, t model.Trip) error {
	_, err := r.trips().InsertOne(ctx, t)
	return mongoInsertErr(err)
}

func (r *MongoRepo) GetTrip(ctx context.Context, id string) (model.Trip, error) {
	return findOne[model.Trip](ctx, r.trips(), bson.M{"id": id})
}

func (r *MongoRepo) GetActiveTrip(ctx context.Context, driverID string) (model.Trip, error) {
	return findOne[model.Trip](ctx, r.trips(), bson.M{"driver_id": driverID, "is_active": true})
}

func (r *MongoRepo) EndTrip(ctx context.Context, id string, end time.Time) (bool, error) {
	return updateMatched(ctx, r.trips(),
		bson.M{"id": id, "is_active": true},
		bson.M{"is_active": false, "end_time": end.UTC()})
}

func (r *MongoRepo) ListActiveTrips(ctx context.Context, vt model.VehicleType) ([]model.Trip, error) {
	return findMany[model.Trip](ctx, r.trips(), bson.M{"is_active": true, "vehicle_type": vt}, "start_time", 100)
}

func (r *MongoRepo) ListDriverTrips(ctx context.Context, driverID string) ([]model.Trip, error) {
	return findMany[model.Trip](ctx, r.trips(), bson.M{"driver_id": driverID}, "start_time", 100)
}

func (r *MongoRepo) CountActiveTrips(ctx context.Context) (int64, error) {
	return r.trips().CountDocuments(ctx, bson.M{"is_active": true})
}

// bookings

func (r *MongoRepo) InsertBooking(ctx context.Context, b model.Booking) error {
	_, err := r.bookings().InsertOne(ctx, b)
	return mongoInsertErr(err)
}

func (r *MongoRepo) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return findOne[model.Booking](ctx, r.bookings(), bson.M{"id": id})
}

func (r *MongoRepo) AcceptBooking(ctx context.Context, id string, a model.Acceptance) (bool, error) {
	return updateMatched(ctx, r.bookings(),
		bson.M{"id": id, "status": model.BookingPending},
		bson.M{
			"status":         model.BookingAccepted,
			"driver_id":      a.DriverID,
			"driver_name":    a.DriverName,
			"vehicle_id":     a.VehicleID,
			"vehicle_number": a.VehicleNumber,
			"otp":            a.OTP,
			"eta_minutes":    a.ETAMinutes,
		})
}

func (r *MongoRepo) TransitionBooking(ctx context.Context, id string, from, to model.BookingStatus) (bool, error) {
	return updateMatched(ctx, r.bookings(), bson.M{"id": id, "status": from}, bson.M{"status": to})
}

func (r *MongoRepo) SetBookingETA(ctx context.Context, id string, eta float64) error {
	_, err := updateMatched(ctx, r.bookings(), bson.M{"id": id}, bson.M{"eta_minutes": eta})
	return err
}

func (r *MongoRepo) FindActiveBookingForVehicle(ctx context.Context, vehicleID string) (model.Booking, error) {
	return findOne[model.Booking](ctx, r.bookings(), bson.M{
		"vehicle_id": vehicleID,
		"status":     bson.M{"$in": bson.A{model.BookingAccepted, model.BookingInProgress}},
	}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *MongoRepo) ListBookingsByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	return findMany[model.Booking](ctx, r.bookings(), bson.M{"status": status}, "created_at", 100)
}

func (r *MongoRepo) ListBookingsByPhone(ctx context.Context, phone string) ([]model.Booking, error) {
	return findMany[model.Booking](ctx, r.bookings(), bson.M{"phone": phone}, "created_at", 100)
}

func (r *MongoRepo) CountBookings(ctx context.Context, status model.BookingStatus) (int64, error) {
	return r.bookings().CountDocuments(ctx, bson.M{"status": status})
}

// offences

func (r *MongoRepo) InsertOffence(ctx context.Context, o model.Offence) error {
	_, err := r.offences().InsertOne(ctx, o)
	return mongoInsertErr(err)
}

func (r *MongoRepo) ListOffences(ctx context.Context, f OffenceFilter) ([]model.Offence, error) {
	filter := bson.M{}
	if f.Type != "" {
		filter["offence_type"] = f.Type
	}
	if f.DriverID != "" {
		filter["driver_id"] = f.DriverID
	}
	if f.RegistrationID != "" {
		filter["student_registration_id"] = f.RegistrationID
	}
	return findMany[model.Offence](ctx, r.offences(), filter, "timestamp", 1000)
}

func (r *MongoRepo) MarkOffencePaid(ctx context.Context, id string) (bool, error) {
	return updateMatched(ctx, r.offences(), bson.M{"id": id}, bson.M{"is_paid": true})
}

func (r *MongoRepo) DeleteOffence(ctx context.Context, id string) (bool, error) {
	return deleteOne(ctx, r.offences(), bson.M{"id": id})
}

func (r *MongoRepo) CountOffences(ctx context.Context, unpaidOnly bool) (int64, error) {
	filter := bson.M{}
	if unpaidOnly {
		filter["is_paid"] = false
	}
	return r.offences().CountDocuments(ctx, filter)
}

// rfid devices

func (r *MongoRepo) InsertRFIDDevice(ctx context.Context, d model.RFIDDevice) error {
	_, err := r.devices().InsertOne(ctx, d)
	return mongoInsertErr(err)
}

func (r *MongoRepo) GetRFIDDeviceByTag(ctx context.Context, tagID string) (model.RFIDDevice, error) {
	return findOne[model.RFIDDevice](ctx, r.devices(), bson.M{"rfid_id": tagID})
}

func (r *MongoRepo) RFIDDeviceExists(ctx context.Context, tagID string) (bool, error) {
	n, err := r.devices().CountDocuments(ctx, bson.M{"rfid_id": tagID})
	return n > 0, err
}

func (r *MongoRepo) DeleteRFIDDevice(ctx context.Context, id string) (bool, error) {
	return deleteOne(ctx, r.devices(), bson.M{"id": id})
}
