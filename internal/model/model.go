// Package model defines the core domain types shared across the mandi engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location is an immutable coordinate pair in decimal degrees.
// Latitude ∈ [-90, 90], longitude ∈ [-180, 180]; validation lives in
// the geo package so it sits next to the distance math that needs it.
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// Mandi is a regulated agricultural wholesale market. Static reference
// data owned by the directory store; the engine only reads it.
type Mandi struct {
	ID       int64    `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Location Location `json:"location"`
	State    string   `json:"state" db:"state"`
	District string   `json:"district" db:"district"`
	Active   bool     `json:"active" db:"is_active"`
}

// Commodity is read-only reference data. Unit is the pricing unit,
// "quintal" (100 kg) for Indian agricultural commodities.
type Commodity struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Unit string `json:"unit" db:"unit"`
}

// PriceQuote is one (mandi, commodity) price observation from the
// price/forecast collaborator. ForecastedPrice and Confidence are
// optional — absence means "use current price only, no forecast
// blending". CurrentPrice is the modal price: the most frequently
// occurring transaction price for the day.
type PriceQuote struct {
	MandiID         int64            `json:"mandi_id"`
	CommodityID     int64            `json:"commodity_id"`
	AsOfDate        time.Time        `json:"as_of_date"`
	CurrentPrice    decimal.Decimal  `json:"current_price"`
	ForecastedPrice *decimal.Decimal `json:"forecasted_price,omitempty"`
	Confidence      *float64         `json:"confidence,omitempty"`
	ArrivalQty      *decimal.Decimal `json:"arrival_qty,omitempty"`
}

// RecommendationRequest is the engine's input. TransportMode and
// OptimizationGoal arrive as wire strings and are parsed/validated
// before any I/O begins.
type RecommendationRequest struct {
	CommodityID      int64           `json:"commodity_id"`
	QuantityQuintals decimal.Decimal `json:"quantity_quintals"`
	Origin           Location        `json:"origin"`
	TransportMode    string          `json:"transport_mode"`
	MaxDistanceKm    *float64        `json:"max_distance_km,omitempty"`
	OptimizationGoal string          `json:"optimization_goal"`
	MandiIDs         []int64         `json:"mandi_ids,omitempty"`
}

// Candidate is the per-mandi breakdown built fresh for each request and
// discarded after the response is assembled. Never persisted.
type Candidate struct {
	Mandi      Mandi      `json:"mandi"`
	DistanceKm float64    `json:"distance_km"`
	Quote      PriceQuote `json:"quote"`

	// EffectivePrice is the forecasted price when its confidence clears
	// the aggregator's threshold, otherwise the current price.
	EffectivePrice decimal.Decimal `json:"effective_price"`
	ForecastUsed   bool            `json:"forecast_used"`

	TransportCost decimal.Decimal `json:"transport_cost"`
	GrossRevenue  decimal.Decimal `json:"gross_revenue"`
	NetProfit     decimal.Decimal `json:"net_profit"`

	// Scores are pure ratios in [0,1], not money.
	PriceScore     float64 `json:"price_score"`
	DistanceScore  float64 `json:"distance_score"`
	CompositeScore float64 `json:"composite_score"`

	Rank int `json:"rank"`

	// PriceChangePct is the forecasted price movement in percent
	// (one decimal place); zero without a forecast.
	PriceChangePct float64 `json:"price_change_pct"`
	Trend          string  `json:"trend,omitempty"`  // "rising", "falling", "stable"
	Reason         string  `json:"reason,omitempty"` // human-readable explanation
}

// Exclusion records a mandi dropped from ranking and why, so callers
// can explain omissions rather than silently dropping markets.
type Exclusion struct {
	MandiID int64  `json:"mandi_id"`
	Reason  string `json:"reason"`
}

// Exclusion reasons.
const (
	ReasonLookupFailed       = "price_lookup_failed"
	ReasonLookupTimeout      = "price_lookup_timeout"
	ReasonNoPriceData        = "no_price_data"
	ReasonExceedsMaxDistance = "exceeds_max_distance"
	ReasonInvalidLocation    = "invalid_location"
)

// Price trend labels, derived from forecast vs. current price.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// RecommendationResult is the engine's output, owned solely by the
// caller. The engine holds no state across requests.
type RecommendationResult struct {
	ID            string                `json:"id"`
	Request       RecommendationRequest `json:"request"`
	Ranked        []Candidate           `json:"ranked"`
	Excluded      []Exclusion           `json:"excluded"`
	TotalAnalyzed int                   `json:"total_analyzed"`
	GeneratedAt   time.Time             `json:"generated_at"`
}
