// Package store defines the directory persistence interface for the
// mandi engine: mandi and commodity reference data plus daily modal
// prices. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing and development).
package store

import (
	"context"
	"errors"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. The engine itself only reads
// reference data; the single write path (UpsertPrice) belongs to the
// daily snapshot ingest.
type Store interface {
	// --- Mandi directory ---

	// GetMandi retrieves a mandi by ID.
	GetMandi(ctx context.Context, id int64) (*model.Mandi, error)

	// ListMandis returns all active mandis.
	ListMandis(ctx context.Context) ([]model.Mandi, error)

	// ListMandisByIDs returns the active mandis matching ids.
	// Unknown IDs are skipped, not errors.
	ListMandisByIDs(ctx context.Context, ids []int64) ([]model.Mandi, error)

	// --- Commodity reference data ---

	// GetCommodity retrieves a commodity by ID.
	GetCommodity(ctx context.Context, id int64) (*model.Commodity, error)

	// ListCommodities returns all commodities.
	ListCommodities(ctx context.Context) ([]model.Commodity, error)

	// --- Daily prices ---

	// GetLatestPrice returns the most recent modal price for a
	// (commodity, mandi) pair, or ErrNotFound.
	GetLatestPrice(ctx context.Context, commodityID, mandiID int64) (*model.PriceQuote, error)

	// UpsertPrice inserts or replaces the price observation for the
	// quote's (commodity, mandi, date) key.
	UpsertPrice(ctx context.Context, q *model.PriceQuote) error
}
