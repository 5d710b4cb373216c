// Package geo implements great-circle distance between coordinate pairs
// using the Haversine formula.
//
// Distance is "as the crow flies" on a sphere of mean Earth radius, not
// road distance — for inter-mandi routing at district scale the error
// versus road networks is acceptable and the computation is pure and
// deterministic.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// EarthRadiusKm is the IUGG mean Earth radius.
const EarthRadiusKm = 6371.0088

// ErrInvalidLocation is returned when a coordinate falls outside
// latitude [-90, 90] or longitude [-180, 180].
var ErrInvalidLocation = errors.New("geo: coordinate out of range")

// Validate checks that a location's coordinates are within range.
func Validate(loc model.Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidLocation, loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidLocation, loc.Longitude)
	}
	return nil
}

// DistanceKm computes the Haversine distance between two locations in
// kilometers. Symmetric within floating-point tolerance and zero for
// identical points. Inputs must pass Validate.
func DistanceKm(a, b model.Location) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	deltaLat := toRadians(b.Latitude - a.Latitude)
	deltaLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c, nil
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
