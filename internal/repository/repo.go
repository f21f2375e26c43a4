package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// timeLayout is fixed width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Repo stores the campus collections in Postgres or SQLite through database/sql.
type Repo struct {
	db      *sql.DB
	dialect Dialect
}

func NewRepo(db *sql.DB, dialect Dialect) *Repo {
	return &Repo{db: db, dialect: dialect}
}

// Open connects to the database, verifies it and creates the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Repo, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		// each connection to :memory: would otherwise see its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	r := NewRepo(db, dialect)
	if err := r.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return r, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL UNIQUE,
		email TEXT UNIQUE,
		registration_id TEXT UNIQUE,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		driver_type TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		vehicle_number TEXT NOT NULL UNIQUE,
		gps_imei TEXT NOT NULL UNIQUE,
		barcode TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		assigned_to TEXT,
		assigned_driver_name TEXT,
		is_out_of_station BOOLEAN NOT NULL,
		loc_lat DOUBLE PRECISION,
		loc_lng DOUBLE PRECISION,
		loc_speed DOUBLE PRECISION,
		loc_timestamp TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vehicles_assigned ON vehicles(assigned_to)`,
	`CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		vehicle_number TEXT NOT NULL,
		vehicle_type TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		driver_name TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		is_active BOOLEAN NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_one_active ON trips(driver_id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		student_registration_id TEXT NOT NULL,
		student_name TEXT,
		phone TEXT NOT NULL,
		place TEXT NOT NULL,
		place_details TEXT NOT NULL,
		pickup_lat DOUBLE PRECISION NOT NULL,
		pickup_lng DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		otp TEXT,
		driver_id TEXT,
		driver_name TEXT,
		vehicle_id TEXT,
		vehicle_number TEXT,
		eta_minutes DOUBLE PRECISION,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_vehicle ON bookings(vehicle_id)`,
	`CREATE TABLE IF NOT EXISTS offences (
		id TEXT PRIMARY KEY,
		offence_type TEXT NOT NULL,
		driver_id TEXT,
		driver_name TEXT,
		student_id TEXT,
		student_name TEXT,
		student_registration_id TEXT,
		phone TEXT,
		vehicle_id TEXT,
		vehicle_number TEXT,
		speed DOUBLE PRECISION NOT NULL,
		speed_limit DOUBLE PRECISION NOT NULL,
		loc_lat DOUBLE PRECISION,
		loc_lng DOUBLE PRECISION,
		loc_name TEXT,
		rfid_number TEXT,
		recorded_at TEXT NOT NULL,
		is_paid BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rfid_devices (
		id TEXT PRIMARY KEY,
		rfid_id TEXT NOT NULL UNIQUE,
		location_name TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

// Init creates the necessary tables and indexes.
func (r *Repo) Init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repo) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders into the $n form Postgres expects.
func (r *Repo) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *Repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *Repo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}

func (r *Repo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

// execAffected runs a conditional update and reports whether any row matched.
func (r *Repo) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// isUniqueViolation recognises constraint failures from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func insertErr(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
