// Package transport models the monetary cost of moving produce from a
// farmer's location to a mandi.
//
// Cost scales with the number of vehicle trips required: bulk
// quantities beyond one vehicle's nominal capacity need multiple trips.
//
//	cost = distanceKm × ratePerKm × ⌈quantity / capacity⌉
//
// Rates and capacities are static configuration per transport mode, not
// mutable state. All monetary values use shopspring/decimal.
package transport

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode is an enumerated transport mode carrying a fixed per-km rate.
type Mode string

// Supported transport modes.
const (
	TwoWheeler   Mode = "two_wheeler"   // motorcycle/scooter
	ThreeWheeler Mode = "three_wheeler" // auto-rickshaw/tempo
	FourWheeler  Mode = "four_wheeler"  // truck/tractor
	Trailer      Mode = "trailer"       // tractor with trailer
)

var (
	// ErrUnknownMode is returned for a transport mode outside the
	// supported set.
	ErrUnknownMode = errors.New("transport: unknown transport mode")

	// ErrInvalidDistance is returned for a non-positive distance.
	ErrInvalidDistance = errors.New("transport: distance must be positive")

	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("transport: quantity must be positive")
)

// CostScale is the number of decimal places for cost rounding (paise).
const CostScale int32 = 2

// spec holds per-mode static configuration. RatePerKm is INR per km;
// CapacityQuintals is the nominal load of one vehicle. A zero capacity
// means unbounded — a single trip regardless of quantity.
type spec struct {
	RatePerKm        decimal.Decimal
	CapacityQuintals decimal.Decimal
}

var modeSpecs = map[Mode]spec{
	TwoWheeler:   {RatePerKm: decimal.NewFromInt(2), CapacityQuintals: decimal.NewFromInt(2)},
	ThreeWheeler: {RatePerKm: decimal.NewFromInt(5), CapacityQuintals: decimal.NewFromInt(10)},
	FourWheeler:  {RatePerKm: decimal.NewFromInt(12), CapacityQuintals: decimal.NewFromInt(60)},
	Trailer:      {RatePerKm: decimal.NewFromInt(15), CapacityQuintals: decimal.NewFromInt(120)},
}

// ParseMode parses and validates a wire-format transport mode string.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, ok := modeSpecs[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// RatePerKm returns the per-km rate for a mode.
func (m Mode) RatePerKm() decimal.Decimal {
	return modeSpecs[m].RatePerKm
}

// CapacityQuintals returns the nominal per-trip capacity for a mode.
func (m Mode) CapacityQuintals() decimal.Decimal {
	return modeSpecs[m].CapacityQuintals
}

// Trips returns the number of vehicle trips needed for a quantity:
// ⌈quantity / capacity⌉, or 1 when capacity is unbounded.
func (m Mode) Trips(quantityQuintals decimal.Decimal) decimal.Decimal {
	capacity := modeSpecs[m].CapacityQuintals
	if capacity.IsZero() {
		return decimal.NewFromInt(1)
	}
	trips := quantityQuintals.Div(capacity).Ceil()
	if trips.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return trips
}

// Cost computes the transport cost for hauling quantityQuintals over
// distanceKm with the given mode. Pure and monotonic non-decreasing in
// both distance and quantity.
func Cost(distanceKm float64, quantityQuintals decimal.Decimal, mode Mode) (decimal.Decimal, error) {
	if _, ok := modeSpecs[mode]; !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if distanceKm <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidDistance, distanceKm)
	}
	if quantityQuintals.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantityQuintals)
	}

	cost := decimal.NewFromFloat(distanceKm).
		Mul(mode.RatePerKm()).
		Mul(mode.Trips(quantityQuintals))

	return cost.Round(CostScale), nil
}
