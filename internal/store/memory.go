package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	mandis      map[int64]*model.Mandi
	commodities map[int64]*model.Commodity
	// prices keyed by (commodityID, mandiID), latest observation only.
	prices map[[2]int64]*model.PriceQuote
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mandis:      make(map[int64]*model.Mandi),
		commodities: make(map[int64]*model.Commodity),
		prices:      make(map[[2]int64]*model.PriceQuote),
	}
}

// AddMandi registers a mandi. Test/seed helper, not part of Store.
func (s *MemoryStore) AddMandi(m model.Mandi) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := m
	s.mandis[m.ID] = &copy
}

// AddCommodity registers a commodity. Test/seed helper, not part of Store.
func (s *MemoryStore) AddCommodity(c model.Commodity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := c
	s.commodities[c.ID] = &copy
}

func (s *MemoryStore) GetMandi(_ context.Context, id int64) (*model.Mandi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mandis[id]
	if !ok {
		return nil, fmt.Errorf("get mandi %d: %w", id, ErrNotFound)
	}
	copy := *m
	return &copy, nil
}

func (s *MemoryStore) ListMandis(_ context.Context) ([]model.Mandi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mandis []model.Mandi
	for _, m := range s.mandis {
		if m.Active {
			mandis = append(mandis, *m)
		}
	}
	sort.Slice(mandis, func(i, j int) bool { return mandis[i].ID < mandis[j].ID })
	return mandis, nil
}

func (s *MemoryStore) ListMandisByIDs(_ context.Context, ids []int64) ([]model.Mandi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mandis []model.Mandi
	for _, id := range ids {
		if m, ok := s.mandis[id]; ok && m.Active {
			mandis = append(mandis, *m)
		}
	}
	sort.Slice(mandis, func(i, j int) bool { return mandis[i].ID < mandis[j].ID })
	return mandis, nil
}

func (s *MemoryStore) GetCommodity(_ context.Context, id int64) (*model.Commodity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.commodities[id]
	if !ok {
		return nil, fmt.Errorf("get commodity %d: %w", id, ErrNotFound)
	}
	copy := *c
	return &copy, nil
}

func (s *MemoryStore) ListCommodities(_ context.Context) ([]model.Commodity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var commodities []model.Commodity
	for _, c := range s.commodities {
		commodities = append(commodities, *c)
	}
	sort.Slice(commodities, func(i, j int) bool { return commodities[i].ID < commodities[j].ID })
	return commodities, nil
}

func (s *MemoryStore) GetLatestPrice(_ context.Context, commodityID, mandiID int64) (*model.PriceQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.prices[[2]int64{commodityID, mandiID}]
	if !ok {
		return nil, fmt.Errorf("latest price commodity=%d mandi=%d: %w", commodityID, mandiID, ErrNotFound)
	}
	copy := *q
	return &copy, nil
}

func (s *MemoryStore) UpsertPrice(_ context.Context, q *model.PriceQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]int64{q.CommodityID, q.MandiID}
	if existing, ok := s.prices[key]; ok && existing.AsOfDate.After(q.AsOfDate) {
		// Keep the newer observation.
		return nil
	}
	copy := *q
	s.prices[key] = &copy
	return nil
}

// SeedReferenceData loads the bundled mandi and commodity fixtures so
// the engine is usable without a database. Prices still come from the
// configured quote source.
func (s *MemoryStore) SeedReferenceData() {
	mandis := []model.Mandi{
		{ID: 1, Name: "Azadpur", Location: model.Location{Latitude: 28.7041, Longitude: 77.1025}, State: "Delhi", District: "North Delhi", Active: true},
		{ID: 2, Name: "Ghazipur", Location: model.Location{Latitude: 28.6229, Longitude: 77.3286}, State: "Delhi", District: "East Delhi", Active: true},
		{ID: 3, Name: "Vashi", Location: model.Location{Latitude: 19.0771, Longitude: 73.0010}, State: "Maharashtra", District: "Mumbai", Active: true},
		{ID: 4, Name: "Lasalgaon", Location: model.Location{Latitude: 20.1427, Longitude: 74.2389}, State: "Maharashtra", District: "Nashik", Active: true},
		{ID: 5, Name: "Kolar", Location: model.Location{Latitude: 13.1367, Longitude: 78.1292}, State: "Karnataka", District: "Kolar", Active: true},
	}
	for _, m := range mandis {
		s.AddMandi(m)
	}

	commodities := []model.Commodity{
		{ID: 1, Name: "Onion", Unit: "quintal"},
		{ID: 2, Name: "Tomato", Unit: "quintal"},
		{ID: 3, Name: "Potato", Unit: "quintal"},
		{ID: 4, Name: "Wheat", Unit: "quintal"},
	}
	for _, c := range commodities {
		s.AddCommodity(c)
	}
}
