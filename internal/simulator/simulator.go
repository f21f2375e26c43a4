// Package simulator feeds synthetic GPS fixes for registered vehicles through the
// normal ingestion path, for demos and local development.
package simulator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"campus-tracker-service/internal/model"
	"campus-tracker-service/internal/service"
)

// Campus is the point simulated vehicles start from.
var Campus = model.Point{Lat: 21.63, Lng: 85.58}

type Fleet interface {
	FleetVehicles(ctx context.Context) ([]model.Vehicle, error)
	IngestGPS(ctx context.Context, r service.GPSReport) (service.IngestResult, error)
}

type Simulator struct {
	fleet    Fleet
	interval time.Duration
	rnd      *rand.Rand
	pos      map[string]model.Point // by IMEI
}

func New(fleet Fleet, interval time.Duration) *Simulator {
	return &Simulator{
		fleet:    fleet,
		interval: interval,
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		pos:      make(map[string]model.Point),
	}
}

// Run emits one fix per vehicle every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	slog.Info("simulator started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulator stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick sends one fix for each vehicle known to the fleet.
func (s *Simulator) Tick(ctx context.Context) int {
	vehicles, err := s.fleet.FleetVehicles(ctx)
	if err != nil {
		slog.Error("simulator: list vehicles", "err", err)
		return 0
	}
	sent := 0
	for _, v := range vehicles {
		p := s.step(v.IMEI)
		report := service.GPSReport{
			IMEI:      v.IMEI,
			Latitude:  p.Lat,
			Longitude: p.Lng,
			Speed:     s.speed(v.Type),
		}
		if _, err := s.fleet.IngestGPS(ctx, report); err != nil {
			slog.Warn("simulator: ingest failed", "vehicle", v.Number, "err", err)
			continue
		}
		slog.Debug("simulated fix", "vehicle", v.Number, "lat", p.Lat, "lng", p.Lng, "speed", report.Speed)
		sent++
	}
	return sent
}

// step moves the vehicle a small random offset from its last position.
func (s *Simulator) step(imei string) model.Point {
	p, ok := s.pos[imei]
	if !ok {
		p = Campus
	}
	p.Lat += s.offset()
	p.Lng += s.offset()
	s.pos[imei] = p
	return p
}

func (s *Simulator) offset() float64 {
	return s.randFloat(-0.001, 0.001)
}

func (s *Simulator) speed(vt model.VehicleType) float64 {
	if vt == model.VehicleAmbulance {
		return s.randFloat(30, 70)
	}
	return s.randFloat(20, 50)
}

func (s *Simulator) randFloat(min, max float64) float64 {
	return min + (max-min)*s.rnd.Float64()
}
