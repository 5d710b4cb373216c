// Package score implements multi-criteria scoring and ranking of
// candidate mandis.
//
// Each candidate's price and distance are normalized against the
// current request's candidate pool (not global constants), so scores
// stay comparable regardless of absolute price level across
// commodities. The composite score is a weighted blend driven by a
// named optimization goal — a closed set of presets rather than
// free-form weights, which keeps configurations valid and the ranking
// explainable to end users.
//
// Scores are pure ratios in [0,1]; monetary fields stay in
// shopspring/decimal and are converted to float64 only at the
// normalization boundary.
package score

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// Goal is an enumerated optimization goal mapping to a fixed
// (priceWeight, distanceWeight) pair summing to 1.0.
type Goal string

// Supported optimization goals.
const (
	MaximizeProfit   Goal = "maximize_profit"   // balance price and transport cost
	MaximizePrice    Goal = "maximize_price"    // highest price regardless of distance
	MinimizeDistance Goal = "minimize_distance" // closest mandi
	Balanced         Goal = "balanced"          // equal weight to price and distance
)

// ErrUnknownGoal is returned for an optimization goal outside the
// supported set.
var ErrUnknownGoal = errors.New("score: unknown optimization goal")

// weights holds the fixed preset for one goal.
type weights struct {
	price    float64
	distance float64
}

var goalWeights = map[Goal]weights{
	MaximizeProfit:   {price: 0.6, distance: 0.4},
	MaximizePrice:    {price: 0.9, distance: 0.1},
	MinimizeDistance: {price: 0.1, distance: 0.9},
	Balanced:         {price: 0.5, distance: 0.5},
}

// ParseGoal parses and validates a wire-format optimization goal.
func ParseGoal(s string) (Goal, error) {
	g := Goal(s)
	if _, ok := goalWeights[g]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGoal, s)
	}
	return g, nil
}

// Weights returns the (priceWeight, distanceWeight) preset for a goal.
func (g Goal) Weights() (priceWeight, distanceWeight float64) {
	w := goalWeights[g]
	return w.price, w.distance
}

// FilterByDistance drops candidates farther than maxDistanceKm before
// scoring, so excluded candidates never enter normalization and cannot
// skew the in-pool maxima. A nil maxDistanceKm keeps everything.
func FilterByDistance(candidates []model.Candidate, maxDistanceKm *float64) ([]model.Candidate, []model.Exclusion) {
	if maxDistanceKm == nil {
		return candidates, nil
	}

	kept := make([]model.Candidate, 0, len(candidates))
	var excluded []model.Exclusion
	for _, c := range candidates {
		if c.DistanceKm > *maxDistanceKm {
			excluded = append(excluded, model.Exclusion{
				MandiID: c.Mandi.ID,
				Reason:  model.ReasonExceedsMaxDistance,
			})
			continue
		}
		kept = append(kept, c)
	}
	return kept, excluded
}

// Score computes normalized price/distance scores and the weighted
// composite for every candidate in the pool. Candidates must already
// carry EffectivePrice and DistanceKm; the returned slice is a new one.
func Score(candidates []model.Candidate, goal Goal) []model.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	maxPrice := candidates[0].EffectivePrice
	maxDistance := candidates[0].DistanceKm
	for _, c := range candidates[1:] {
		if c.EffectivePrice.GreaterThan(maxPrice) {
			maxPrice = c.EffectivePrice
		}
		if c.DistanceKm > maxDistance {
			maxDistance = c.DistanceKm
		}
	}

	pw, dw := goal.Weights()
	maxPriceF := maxPrice.InexactFloat64()

	scored := make([]model.Candidate, len(candidates))
	for i, c := range candidates {
		// Relative price: highest effective price in the pool = 1.0.
		// A pool priced entirely at zero carries no signal; score
		// everyone 1.0, same as the equidistant case below.
		if maxPriceF > 0 {
			c.PriceScore = c.EffectivePrice.InexactFloat64() / maxPriceF
		} else {
			c.PriceScore = 1.0
		}

		// Inverted distance: closest = 1.0, farthest = 0. When every
		// candidate is equidistant (max = 0), there is no distance
		// penalty to apply.
		if maxDistance > 0 {
			c.DistanceScore = 1 - c.DistanceKm/maxDistance
		} else {
			c.DistanceScore = 1.0
		}

		c.CompositeScore = pw*c.PriceScore + dw*c.DistanceScore
		scored[i] = c
	}
	return scored
}

// Rank orders scored candidates by composite score descending, with
// deterministic tie-breaks: higher net profit, then lower distance,
// then lower mandi ID. Assigns 1-based ranks. Truncation to a
// caller-requested top N is the caller's responsibility.
func Rank(candidates []model.Candidate) []model.Candidate {
	ranked := make([]model.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if cmp := a.NetProfit.Cmp(b.NetProfit); cmp != 0 {
			return cmp > 0
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.Mandi.ID < b.Mandi.ID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
