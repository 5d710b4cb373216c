package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// loc is a test helper for building locations.
func loc(lat, lon float64) model.Location {
	return model.Location{Latitude: lat, Longitude: lon}
}

// --- Validation tests ---

func TestValidate_Valid(t *testing.T) {
	tests := []model.Location{
		{Latitude: 0, Longitude: 0},
		{Latitude: 28.6139, Longitude: 77.2090},
		{Latitude: -90, Longitude: -180},
		{Latitude: 90, Longitude: 180},
	}
	for _, l := range tests {
		if err := Validate(l); err != nil {
			t.Errorf("expected %v to be valid, got %v", l, err)
		}
	}
}

func TestValidate_OutOfRange(t *testing.T) {
	tests := []model.Location{
		{Latitude: 91, Longitude: 0},
		{Latitude: -90.01, Longitude: 0},
		{Latitude: 0, Longitude: 181},
		{Latitude: 0, Longitude: -180.5},
	}
	for _, l := range tests {
		if err := Validate(l); !errors.Is(err, ErrInvalidLocation) {
			t.Errorf("expected ErrInvalidLocation for %v, got %v", l, err)
		}
	}
}

func TestDistanceKm_RejectsInvalidInput(t *testing.T) {
	_, err := DistanceKm(loc(95, 0), loc(0, 0))
	if !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
	_, err = DistanceKm(loc(0, 0), loc(0, -200))
	if !errors.Is(err, ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}

// --- Distance tests ---

func TestDistanceKm_Identity(t *testing.T) {
	delhi := loc(28.6139, 77.2090)
	d, err := DistanceKm(delhi, delhi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Errorf("distance to self should be 0, got %v", d)
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	tests := []struct {
		a, b model.Location
	}{
		{loc(28.6139, 77.2090), loc(28.7041, 77.1025)}, // Delhi → Azadpur
		{loc(19.0760, 72.8777), loc(20.1500, 74.2300)}, // Mumbai → Lasalgaon
		{loc(-33.8688, 151.2093), loc(51.5074, -0.1278)},
		{loc(0, 179.9), loc(0, -179.9)}, // antimeridian
	}
	for _, tt := range tests {
		ab, err := DistanceKm(tt.a, tt.b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ba, err := DistanceKm(tt.b, tt.a)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(ab-ba) > 1e-6 {
			t.Errorf("distance not symmetric: ab=%v ba=%v", ab, ba)
		}
	}
}

func TestDistanceKm_KnownDistance(t *testing.T) {
	// Delhi (Connaught Place) to Azadpur mandi is roughly 14 km
	// great-circle.
	d, err := DistanceKm(loc(28.6139, 77.2090), loc(28.7041, 77.1025))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d < 13 || d > 16 {
		t.Errorf("expected ~14 km, got %v", d)
	}
}

func TestDistanceKm_QuarterMeridian(t *testing.T) {
	// Equator to pole along a meridian is a quarter of the great circle.
	d, err := DistanceKm(loc(0, 0), loc(90, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := EarthRadiusKm * math.Pi / 2
	if math.Abs(d-want) > 1e-6 {
		t.Errorf("expected %v, got %v", want, d)
	}
}

func TestDistanceKm_NonNegative(t *testing.T) {
	tests := []struct {
		a, b model.Location
	}{
		{loc(13.1, 78.1), loc(28.6, 77.2)},
		{loc(-45, -90), loc(45, 90)},
	}
	for _, tt := range tests {
		d, err := DistanceKm(tt.a, tt.b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d < 0 {
			t.Errorf("distance must be non-negative, got %v", d)
		}
	}
}
