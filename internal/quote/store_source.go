package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/agrianalytics/mandi-engine/internal/model"
	"github.com/agrianalytics/mandi-engine/internal/store"
)

// StoreSource implements Source against the directory store's daily
// modal prices. It yields current prices only — no forecast blending —
// and is used when no forecast service is configured.
type StoreSource struct {
	st store.Store
}

// NewStoreSource creates a store-backed quote source.
func NewStoreSource(st store.Store) *StoreSource {
	return &StoreSource{st: st}
}

// Quote returns the latest stored modal price for the pair.
func (s *StoreSource) Quote(ctx context.Context, commodityID, mandiID int64) (*model.PriceQuote, error) {
	q, err := s.st.GetLatestPrice(ctx, commodityID, mandiID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("commodity=%d mandi=%d: %w", commodityID, mandiID, ErrNoQuote)
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}
