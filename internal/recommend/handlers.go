package recommend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/agrianalytics/mandi-engine/internal/geo"
	"github.com/agrianalytics/mandi-engine/internal/model"
	"github.com/agrianalytics/mandi-engine/internal/score"
	"github.com/agrianalytics/mandi-engine/internal/store"
	"github.com/agrianalytics/mandi-engine/internal/transport"
)

// HandleRecommend handles POST /api/v1/recommendations
func (s *Service) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req model.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.Recommend(r.Context(), req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("recommendation served",
		"id", result.ID,
		"commodity", req.CommodityID,
		"goal", req.OptimizationGoal,
		"ranked", len(result.Ranked),
		"excluded", len(result.Excluded),
	)

	writeJSON(w, http.StatusOK, result)
}

// HandleRouteSummary handles
// GET /api/v1/routes/summary/{commodityID}/{mandiID}?latitude=&longitude=&quantity_quintals=&transport_mode=
func (s *Service) HandleRouteSummary(w http.ResponseWriter, r *http.Request) {
	commodityID, err := strconv.ParseInt(chi.URLParam(r, "commodityID"), 10, 64)
	if err != nil {
		writeError(w, "invalid commodity id", http.StatusBadRequest)
		return
	}
	mandiID, err := strconv.ParseInt(chi.URLParam(r, "mandiID"), 10, 64)
	if err != nil {
		writeError(w, "invalid mandi id", http.StatusBadRequest)
		return
	}

	origin, err := originFromQuery(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	quantity := decimal.NewFromInt(1)
	if qs := r.URL.Query().Get("quantity_quintals"); qs != "" {
		quantity, err = decimal.NewFromString(qs)
		if err != nil {
			writeError(w, "invalid quantity_quintals", http.StatusBadRequest)
			return
		}
	}

	mode := r.URL.Query().Get("transport_mode")
	if mode == "" {
		mode = string(transport.ThreeWheeler)
	}

	summary, err := s.BuildRouteSummary(r.Context(), commodityID, mandiID, origin, quantity, mode)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleListMandis handles GET /api/v1/mandis
func (s *Service) HandleListMandis(w http.ResponseWriter, r *http.Request) {
	mandis, err := s.store.ListMandis(r.Context())
	if err != nil {
		writeError(w, "failed to list mandis", http.StatusInternalServerError)
		return
	}
	if mandis == nil {
		mandis = []model.Mandi{}
	}
	writeJSON(w, http.StatusOK, mandis)
}

// nearbyMandi pairs a mandi with its distance from the query origin.
type nearbyMandi struct {
	model.Mandi
	DistanceKm float64 `json:"distance_km"`
}

// HandleNearbyMandis handles
// GET /api/v1/mandis/nearby?latitude=&longitude=&radius_km=&limit=
func (s *Service) HandleNearbyMandis(w http.ResponseWriter, r *http.Request) {
	origin, err := originFromQuery(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := geo.Validate(origin); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	radius := s.radiusKm
	if rs := r.URL.Query().Get("radius_km"); rs != "" {
		radius, err = strconv.ParseFloat(rs, 64)
		if err != nil || radius <= 0 {
			writeError(w, "invalid radius_km", http.StatusBadRequest)
			return
		}
	}
	limit := s.discoveryLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		limit, err = strconv.Atoi(ls)
		if err != nil || limit <= 0 {
			writeError(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	all, err := s.store.ListMandis(r.Context())
	if err != nil {
		writeError(w, "failed to list mandis", http.StatusInternalServerError)
		return
	}

	nearby := []nearbyMandi{}
	for _, m := range all {
		dist, err := geo.DistanceKm(origin, m.Location)
		if err != nil {
			continue
		}
		if dist <= radius {
			nearby = append(nearby, nearbyMandi{Mandi: m, DistanceKm: dist})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}

	writeJSON(w, http.StatusOK, nearby)
}

// HandleListCommodities handles GET /api/v1/commodities
func (s *Service) HandleListCommodities(w http.ResponseWriter, r *http.Request) {
	commodities, err := s.store.ListCommodities(r.Context())
	if err != nil {
		writeError(w, "failed to list commodities", http.StatusInternalServerError)
		return
	}
	if commodities == nil {
		commodities = []model.Commodity{}
	}
	writeJSON(w, http.StatusOK, commodities)
}

// originFromQuery parses latitude/longitude query parameters.
func originFromQuery(r *http.Request) (model.Location, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	if err != nil {
		return model.Location{}, errors.New("invalid or missing latitude")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if err != nil {
		return model.Location{}, errors.New("invalid or missing longitude")
	}
	return model.Location{Latitude: lat, Longitude: lon}, nil
}

// writeEngineError maps engine errors onto HTTP statuses: validation
// failures are the caller's fault, unknown reference data is 404,
// anything else is a 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, geo.ErrInvalidLocation),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, transport.ErrUnknownMode),
		errors.Is(err, transport.ErrInvalidDistance),
		errors.Is(err, transport.ErrInvalidQuantity),
		errors.Is(err, score.ErrUnknownGoal),
		errors.Is(err, ErrNoMandis):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrQuoteUnavailable):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("recommendation failed", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
