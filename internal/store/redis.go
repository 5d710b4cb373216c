package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis
// read-through cache. Reads check Redis first then fall back to the
// primary; the single write path invalidates the affected price key.
// Mandi and commodity reference data changes rarely, so it is cached
// under the same TTL rather than invalidated.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func mandiKey(id int64) string { return fmt.Sprintf("mandi:%d", id) }
func commodityKey(id int64) string { return fmt.Sprintf("commodity:%d", id) }
func priceKey(commodityID, mandiID int64) string {
	return fmt.Sprintf("price:%d:%d", commodityID, mandiID)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMandi(ctx context.Context, id int64) (*model.Mandi, error) {
	data, err := s.rdb.Get(ctx, mandiKey(id)).Bytes()
	if err == nil {
		var m model.Mandi
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMandi(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, mandiKey(id), m)
	return m, nil
}

func (s *CachedStore) GetCommodity(ctx context.Context, id int64) (*model.Commodity, error) {
	data, err := s.rdb.Get(ctx, commodityKey(id)).Bytes()
	if err == nil {
		var c model.Commodity
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	c, err := s.primary.GetCommodity(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, commodityKey(id), c)
	return c, nil
}

func (s *CachedStore) GetLatestPrice(ctx context.Context, commodityID, mandiID int64) (*model.PriceQuote, error) {
	key := priceKey(commodityID, mandiID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var q model.PriceQuote
		if json.Unmarshal(data, &q) == nil {
			return &q, nil
		}
	}

	q, err := s.primary.GetLatestPrice(ctx, commodityID, mandiID)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, key, q)
	return q, nil
}

// --- Pass-through list reads (low frequency, unbounded key space) ---

func (s *CachedStore) ListMandis(ctx context.Context) ([]model.Mandi, error) {
	return s.primary.ListMandis(ctx)
}

func (s *CachedStore) ListMandisByIDs(ctx context.Context, ids []int64) ([]model.Mandi, error) {
	return s.primary.ListMandisByIDs(ctx, ids)
}

func (s *CachedStore) ListCommodities(ctx context.Context) ([]model.Commodity, error) {
	return s.primary.ListCommodities(ctx)
}

// --- Write (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertPrice(ctx context.Context, q *model.PriceQuote) error {
	if err := s.primary.UpsertPrice(ctx, q); err != nil {
		return err
	}
	// Invalidate; next read re-populates with the latest row.
	s.rdb.Del(ctx, priceKey(q.CommodityID, q.MandiID))
	return nil
}

// cacheJSON best-effort stores a value; cache failures are ignored
// since the primary store already answered.
func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.rdb.Set(ctx, key, data, s.ttl)
}
