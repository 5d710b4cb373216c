// Package recommend implements the mandi recommendation and routing
// optimization engine: given a commodity, quantity, origin, and an
// optimization goal, it selects and ranks candidate mandis by combining
// price, distance, and transport cost into a net-profit aware score.
//
// The engine is stateless and request-scoped. All validation happens
// before any I/O; the only suspension point is the price/forecast
// fan-out in the quote package. All monetary values use
// shopspring/decimal — never float64 for money.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrianalytics/mandi-engine/internal/geo"
	"github.com/agrianalytics/mandi-engine/internal/metrics"
	"github.com/agrianalytics/mandi-engine/internal/model"
	"github.com/agrianalytics/mandi-engine/internal/quote"
	"github.com/agrianalytics/mandi-engine/internal/score"
	"github.com/agrianalytics/mandi-engine/internal/store"
	"github.com/agrianalytics/mandi-engine/internal/transport"
)

var (
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("recommend: quantity must be positive")

	// ErrNoMandis is returned when the directory lookup yields no
	// candidate mandis at all (distinct from every candidate being
	// excluded, which is a successful empty ranking).
	ErrNoMandis = errors.New("recommend: no candidate mandis")

	// ErrQuoteUnavailable is returned by RouteSummary when the single
	// requested mandi has no usable price.
	ErrQuoteUnavailable = errors.New("recommend: price unavailable for mandi")
)

// Defaults for mandi discovery when the request omits mandi_ids.
const (
	DefaultDiscoveryRadiusKm = 100.0
	DefaultDiscoveryLimit    = 50
)

// Service is the recommendation engine plus its HTTP surface. It holds
// only collaborators, never request state, so concurrent requests need
// no locking.
type Service struct {
	store          store.Store
	agg            *quote.Aggregator
	radiusKm       float64
	discoveryLimit int
}

// NewService creates the engine. A non-positive discoveryRadiusKm
// selects the default.
func NewService(st store.Store, agg *quote.Aggregator, discoveryRadiusKm float64) *Service {
	if discoveryRadiusKm <= 0 {
		discoveryRadiusKm = DefaultDiscoveryRadiusKm
	}
	return &Service{
		store:          st,
		agg:            agg,
		radiusKm:       discoveryRadiusKm,
		discoveryLimit: DefaultDiscoveryLimit,
	}
}

// Recommend runs the full pipeline: validate → discover candidates →
// distance filter → concurrent price fetch → score → rank → assemble.
//
// Per-mandi price failures never abort the batch; they become entries
// in the result's Excluded list. A request where every candidate ends
// up excluded still succeeds, with an empty Ranked list, so callers can
// render "no mandis found within range" rather than an error page.
func (s *Service) Recommend(ctx context.Context, req model.RecommendationRequest) (*model.RecommendationResult, error) {
	start := time.Now()

	// --- Fail fast: reject invalid input before any I/O ---
	if err := geo.Validate(req.Origin); err != nil {
		return nil, err
	}
	if req.QuantityQuintals.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, req.QuantityQuintals)
	}
	mode, err := transport.ParseMode(req.TransportMode)
	if err != nil {
		return nil, err
	}
	goal, err := score.ParseGoal(req.OptimizationGoal)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetCommodity(ctx, req.CommodityID); err != nil {
		return nil, fmt.Errorf("recommend: commodity %d: %w", req.CommodityID, err)
	}

	mandis, err := s.candidateMandis(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("recommend: directory lookup: %w", err)
	}
	if len(mandis) == 0 {
		return nil, ErrNoMandis
	}

	// --- Distance per candidate ---
	var excluded []model.Exclusion
	pool := make([]model.Candidate, 0, len(mandis))
	for _, m := range mandis {
		dist, err := geo.DistanceKm(req.Origin, m.Location)
		if err != nil {
			// Bad directory row; drop the mandi, not the request.
			excluded = append(excluded, model.Exclusion{MandiID: m.ID, Reason: model.ReasonInvalidLocation})
			continue
		}
		pool = append(pool, model.Candidate{Mandi: m, DistanceKm: dist})
	}
	totalAnalyzed := len(pool)

	// Distance filter runs before scoring so excluded candidates never
	// skew the in-pool normalization maxima.
	kept, distanceExcluded := score.FilterByDistance(pool, req.MaxDistanceKm)
	excluded = append(excluded, distanceExcluded...)

	// --- Concurrent price fetch for survivors ---
	ids := make([]int64, len(kept))
	for i, c := range kept {
		ids[i] = c.Mandi.ID
	}
	quotes := s.agg.FetchQuotes(ctx, req.CommodityID, ids)
	excluded = append(excluded, quotes.Failures...)

	// --- Monetary breakdown per surviving candidate ---
	candidates := make([]model.Candidate, 0, len(kept))
	for _, c := range kept {
		q, ok := quotes.Quotes[c.Mandi.ID]
		if !ok {
			continue // already recorded as a failure exclusion
		}
		c.Quote = q
		c.EffectivePrice, c.ForecastUsed = s.agg.EffectivePrice(q)
		c.Trend = quote.Trend(q)
		c.PriceChangePct = quote.ChangePct(q)

		if c.DistanceKm > 0 {
			c.TransportCost, err = transport.Cost(c.DistanceKm, req.QuantityQuintals, mode)
			if err != nil {
				return nil, err
			}
		} else {
			// A mandi at the origin costs nothing to reach.
			c.TransportCost = decimal.Zero
		}
		c.GrossRevenue = c.EffectivePrice.Mul(req.QuantityQuintals).Round(transport.CostScale)
		c.NetProfit = c.GrossRevenue.Sub(c.TransportCost)
		candidates = append(candidates, c)
	}

	// --- Score, rank, explain ---
	ranked := score.Rank(score.Score(candidates, goal))
	for i := range ranked {
		ranked[i].Reason = recommendationReason(ranked[i], goal)
	}

	sort.Slice(excluded, func(i, j int) bool { return excluded[i].MandiID < excluded[j].MandiID })

	recordMetrics(goal, quotes, excluded, start)

	return &model.RecommendationResult{
		ID:            uuid.New().String(),
		Request:       req,
		Ranked:        ranked,
		Excluded:      excluded,
		TotalAnalyzed: totalAnalyzed,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// candidateMandis resolves the candidate pool: the explicitly requested
// mandi IDs, or every active mandi within the discovery radius of the
// origin (closest first, capped).
func (s *Service) candidateMandis(ctx context.Context, req model.RecommendationRequest) ([]model.Mandi, error) {
	if len(req.MandiIDs) > 0 {
		return s.store.ListMandisByIDs(ctx, req.MandiIDs)
	}

	all, err := s.store.ListMandis(ctx)
	if err != nil {
		return nil, err
	}

	radius := s.radiusKm
	if req.MaxDistanceKm != nil {
		radius = *req.MaxDistanceKm
	}

	type nearby struct {
		mandi model.Mandi
		dist  float64
	}
	var within []nearby
	for _, m := range all {
		dist, err := geo.DistanceKm(req.Origin, m.Location)
		if err != nil {
			continue
		}
		if dist <= radius {
			within = append(within, nearby{mandi: m, dist: dist})
		}
	}
	sort.Slice(within, func(i, j int) bool { return within[i].dist < within[j].dist })

	if len(within) > s.discoveryLimit {
		within = within[:s.discoveryLimit]
	}
	mandis := make([]model.Mandi, len(within))
	for i, n := range within {
		mandis[i] = n.mandi
	}
	return mandis, nil
}

// RouteSummary is the single-mandi breakdown returned by the
// route-summary endpoint.
type RouteSummary struct {
	Mandi            model.Mandi     `json:"mandi"`
	Commodity        model.Commodity `json:"commodity"`
	DistanceKm       float64         `json:"distance_km"`
	QuantityQuintals decimal.Decimal `json:"quantity_quintals"`
	TransportMode    string          `json:"transport_mode"`
	EffectivePrice   decimal.Decimal `json:"effective_price"`
	ForecastUsed     bool            `json:"forecast_used"`
	PriceChangePct   float64         `json:"price_change_pct"`
	Trend            string          `json:"trend"`
	GrossRevenue     decimal.Decimal `json:"gross_revenue"`
	TransportCost    decimal.Decimal `json:"transport_cost"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	ProfitPerQuintal decimal.Decimal `json:"profit_per_quintal"`
}

// BuildRouteSummary assembles the breakdown for one specific mandi.
func (s *Service) BuildRouteSummary(ctx context.Context, commodityID, mandiID int64, origin model.Location, quantity decimal.Decimal, modeStr string) (*RouteSummary, error) {
	if err := geo.Validate(origin); err != nil {
		return nil, err
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}
	mode, err := transport.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	commodity, err := s.store.GetCommodity(ctx, commodityID)
	if err != nil {
		return nil, fmt.Errorf("recommend: commodity %d: %w", commodityID, err)
	}
	mandi, err := s.store.GetMandi(ctx, mandiID)
	if err != nil {
		return nil, fmt.Errorf("recommend: mandi %d: %w", mandiID, err)
	}

	dist, err := geo.DistanceKm(origin, mandi.Location)
	if err != nil {
		return nil, err
	}

	res := s.agg.FetchQuotes(ctx, commodityID, []int64{mandiID})
	q, ok := res.Quotes[mandiID]
	if !ok {
		return nil, fmt.Errorf("%w: mandi %d", ErrQuoteUnavailable, mandiID)
	}

	effective, forecastUsed := s.agg.EffectivePrice(q)

	cost := decimal.Zero
	if dist > 0 {
		cost, err = transport.Cost(dist, quantity, mode)
		if err != nil {
			return nil, err
		}
	}
	gross := effective.Mul(quantity).Round(transport.CostScale)
	net := gross.Sub(cost)

	return &RouteSummary{
		Mandi:            *mandi,
		Commodity:        *commodity,
		DistanceKm:       dist,
		QuantityQuintals: quantity,
		TransportMode:    string(mode),
		EffectivePrice:   effective,
		ForecastUsed:     forecastUsed,
		PriceChangePct:   quote.ChangePct(q),
		Trend:            quote.Trend(q),
		GrossRevenue:     gross,
		TransportCost:    cost,
		NetProfit:        net,
		ProfitPerQuintal: net.Div(quantity).Round(transport.CostScale),
	}, nil
}

// recommendationReason phrases why a candidate ranked where it did,
// for end users.
func recommendationReason(c model.Candidate, goal score.Goal) string {
	var parts []string

	switch c.Trend {
	case model.TrendRising:
		parts = append(parts, fmt.Sprintf("prices are rising (%+.1f%% expected)", c.PriceChangePct))
	case model.TrendFalling:
		parts = append(parts, fmt.Sprintf("prices may fall (%+.1f%% expected)", c.PriceChangePct))
	default:
		parts = append(parts, "prices are stable")
	}

	switch {
	case c.DistanceKm <= 20:
		parts = append(parts, "very close to your location")
	case c.DistanceKm <= 50:
		parts = append(parts, "moderately close")
	default:
		parts = append(parts, "farther away but may offer better prices")
	}

	if c.NetProfit.IsPositive() {
		parts = append(parts, "expected net profit of ₹"+c.NetProfit.StringFixed(0))
	}

	var lead string
	switch goal {
	case score.MaximizeProfit:
		lead = "Best balance of price and transport cost"
	case score.MaximizePrice:
		lead = "Highest price potential"
	case score.MinimizeDistance:
		lead = "Closest option with reasonable prices"
	default:
		lead = "Balanced recommendation"
	}

	return lead + ": " + strings.Join(parts, ", ") + "."
}

// recordMetrics updates the Prometheus counters for one engine run.
func recordMetrics(goal score.Goal, quotes quote.Result, excluded []model.Exclusion, start time.Time) {
	metrics.RecommendationsTotal.WithLabelValues(string(goal)).Inc()
	metrics.RecommendationLatency.WithLabelValues(string(goal)).Observe(time.Since(start).Seconds())
	metrics.QuoteLookupsTotal.WithLabelValues("ok").Add(float64(len(quotes.Quotes)))

	for _, f := range quotes.Failures {
		var outcome string
		switch f.Reason {
		case model.ReasonLookupTimeout:
			outcome = "timeout"
		case model.ReasonNoPriceData:
			outcome = "no_data"
		default:
			outcome = "failed"
		}
		metrics.QuoteLookupsTotal.WithLabelValues(outcome).Inc()
	}
	for _, e := range excluded {
		metrics.CandidatesExcluded.WithLabelValues(e.Reason).Inc()
	}
}
