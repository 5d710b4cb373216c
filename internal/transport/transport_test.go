package transport

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Parsing tests ---

func TestParseMode_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"two_wheeler", TwoWheeler},
		{"three_wheeler", ThreeWheeler},
		{"four_wheeler", FourWheeler},
		{"trailer", Trailer},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMode_Unknown(t *testing.T) {
	for _, in := range []string{"", "bullock_cart", "TWO_WHEELER", "truck"} {
		if _, err := ParseMode(in); !errors.Is(err, ErrUnknownMode) {
			t.Errorf("expected ErrUnknownMode for %q, got %v", in, err)
		}
	}
}

// --- Trip count tests ---

func TestTrips_WithinCapacity(t *testing.T) {
	if got := ThreeWheeler.Trips(d(10)); !got.Equal(d(1)) {
		t.Errorf("10q in a 10q three-wheeler should be 1 trip, got %s", got)
	}
	if got := ThreeWheeler.Trips(d(0.5)); !got.Equal(d(1)) {
		t.Errorf("fractional load should still be 1 trip, got %s", got)
	}
}

func TestTrips_OverCapacity(t *testing.T) {
	if got := ThreeWheeler.Trips(d(10.5)); !got.Equal(d(2)) {
		t.Errorf("10.5q in a 10q three-wheeler should be 2 trips, got %s", got)
	}
	if got := TwoWheeler.Trips(d(7)); !got.Equal(d(4)) {
		t.Errorf("7q in a 2q two-wheeler should be 4 trips, got %s", got)
	}
}

// --- Cost tests ---

func TestCost_SingleTrip(t *testing.T) {
	// 12.4 km × 5 INR/km × 1 trip = 62.00
	cost, err := Cost(12.4, d(10), ThreeWheeler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cost.Equal(d(62)) {
		t.Errorf("expected cost 62, got %s", cost)
	}
}

func TestCost_MultiTrip(t *testing.T) {
	// 25q exceeds one 10q three-wheeler: 3 trips.
	// 8 km × 5 INR/km × 3 = 120.00
	cost, err := Cost(8, d(25), ThreeWheeler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cost.Equal(d(120)) {
		t.Errorf("expected cost 120, got %s", cost)
	}
}

func TestCost_InvalidInput(t *testing.T) {
	if _, err := Cost(0, d(10), ThreeWheeler); !errors.Is(err, ErrInvalidDistance) {
		t.Errorf("expected ErrInvalidDistance for zero distance, got %v", err)
	}
	if _, err := Cost(-5, d(10), ThreeWheeler); !errors.Is(err, ErrInvalidDistance) {
		t.Errorf("expected ErrInvalidDistance for negative distance, got %v", err)
	}
	if _, err := Cost(10, d(0), ThreeWheeler); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity for zero quantity, got %v", err)
	}
	if _, err := Cost(10, d(-1), ThreeWheeler); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity for negative quantity, got %v", err)
	}
	if _, err := Cost(10, d(1), Mode("oxcart")); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestCost_MonotonicInDistance(t *testing.T) {
	qty := d(10)
	prev := decimal.Zero
	for _, km := range []float64{1, 5, 12.4, 50, 120, 500} {
		cost, err := Cost(km, qty, FourWheeler)
		if err != nil {
			t.Fatalf("unexpected error at %v km: %v", km, err)
		}
		if cost.LessThan(prev) {
			t.Errorf("cost decreased with distance: %s < %s at %v km", cost, prev, km)
		}
		prev = cost
	}
}

func TestCost_MonotonicInQuantity(t *testing.T) {
	prev := decimal.Zero
	for _, q := range []float64{0.5, 2, 9.9, 10, 10.1, 45, 200} {
		cost, err := Cost(30, d(q), ThreeWheeler)
		if err != nil {
			t.Fatalf("unexpected error at %vq: %v", q, err)
		}
		if cost.LessThan(prev) {
			t.Errorf("cost decreased with quantity: %s < %s at %vq", cost, prev, q)
		}
		prev = cost
	}
}

func TestCost_RatesMatchModes(t *testing.T) {
	// Per-km rates: two 2, three 5, four 12, trailer 15.
	tests := []struct {
		mode Mode
		want float64
	}{
		{TwoWheeler, 20},
		{ThreeWheeler, 50},
		{FourWheeler, 120},
		{Trailer, 150},
	}
	for _, tt := range tests {
		cost, err := Cost(10, d(1), tt.mode)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.mode, err)
		}
		if !cost.Equal(d(tt.want)) {
			t.Errorf("%s: expected %v for 10 km × 1q, got %s", tt.mode, tt.want, cost)
		}
	}
}
