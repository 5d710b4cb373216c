package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of
// truth. Modal prices are stored as NUMERIC for exact decimal
// precision and scanned as TEXT into decimal.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetMandi(ctx context.Context, id int64) (*model.Mandi, error) {
	var m model.Mandi
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, latitude, longitude, state, district, is_active
		 FROM mandis WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Location.Latitude, &m.Location.Longitude,
			&m.State, &m.District, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get mandi %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mandi %d: %w", id, err)
	}
	return &m, nil
}

func (s *PostgresStore) ListMandis(ctx context.Context) ([]model.Mandi, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, latitude, longitude, state, district, is_active
		 FROM mandis WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMandis(rows)
}

func (s *PostgresStore) ListMandisByIDs(ctx context.Context, ids []int64) ([]model.Mandi, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, latitude, longitude, state, district, is_active
		 FROM mandis WHERE is_active AND id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMandis(rows)
}

func scanMandis(rows pgx.Rows) ([]model.Mandi, error) {
	var mandis []model.Mandi
	for rows.Next() {
		var m model.Mandi
		if err := rows.Scan(&m.ID, &m.Name, &m.Location.Latitude, &m.Location.Longitude,
			&m.State, &m.District, &m.Active); err != nil {
			return nil, err
		}
		mandis = append(mandis, m)
	}
	return mandis, rows.Err()
}

func (s *PostgresStore) GetCommodity(ctx context.Context, id int64) (*model.Commodity, error) {
	var c model.Commodity
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, unit FROM commodities WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get commodity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get commodity %d: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) ListCommodities(ctx context.Context) ([]model.Commodity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, unit FROM commodities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commodities []model.Commodity
	for rows.Next() {
		var c model.Commodity
		if err := rows.Scan(&c.ID, &c.Name, &c.Unit); err != nil {
			return nil, err
		}
		commodities = append(commodities, c)
	}
	return commodities, rows.Err()
}

func (s *PostgresStore) GetLatestPrice(ctx context.Context, commodityID, mandiID int64) (*model.PriceQuote, error) {
	q := model.PriceQuote{CommodityID: commodityID, MandiID: mandiID}
	var modalPrice string
	var arrivalQty *string

	err := s.pool.QueryRow(ctx,
		`SELECT price_date, modal_price::TEXT, arrival_qty::TEXT
		 FROM prices
		 WHERE commodity_id = $1 AND mandi_id = $2
		 ORDER BY price_date DESC LIMIT 1`, commodityID, mandiID).
		Scan(&q.AsOfDate, &modalPrice, &arrivalQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("latest price commodity=%d mandi=%d: %w", commodityID, mandiID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest price commodity=%d mandi=%d: %w", commodityID, mandiID, err)
	}

	q.CurrentPrice, err = decimal.NewFromString(modalPrice)
	if err != nil {
		return nil, fmt.Errorf("latest price commodity=%d mandi=%d: bad modal price: %w", commodityID, mandiID, err)
	}
	if arrivalQty != nil {
		qty, err := decimal.NewFromString(*arrivalQty)
		if err == nil {
			q.ArrivalQty = &qty
		}
	}
	return &q, nil
}

func (s *PostgresStore) UpsertPrice(ctx context.Context, q *model.PriceQuote) error {
	var arrivalQty *string
	if q.ArrivalQty != nil {
		s := q.ArrivalQty.String()
		arrivalQty = &s
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO prices (commodity_id, mandi_id, price_date, modal_price, arrival_qty)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (commodity_id, mandi_id, price_date)
		 DO UPDATE SET modal_price = EXCLUDED.modal_price, arrival_qty = EXCLUDED.arrival_qty`,
		q.CommodityID, q.MandiID, q.AsOfDate, q.CurrentPrice.String(), arrivalQty,
	)
	if err != nil {
		return fmt.Errorf("upsert price commodity=%d mandi=%d: %w", q.CommodityID, q.MandiID, err)
	}
	return nil
}
