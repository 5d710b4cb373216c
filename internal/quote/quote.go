// Package quote retrieves current and forecasted prices per
// (commodity, mandi) pair from the price/forecast collaborator.
//
// The aggregator fans out one lookup per mandi, all concurrent with an
// individual timeout, and fans back in with isolated failure
// containment: one slow or failing lookup never blocks or fails the
// batch, it just becomes an exclusion. Results are keyed by mandi ID,
// so the final ranking is deterministic regardless of arrival order.
package quote

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// ErrNoQuote is returned by a Source when no price data exists for the
// requested (commodity, mandi) pair.
var ErrNoQuote = errors.New("quote: no price data")

// Defaults applied by NewAggregator for zero-valued parameters.
const (
	DefaultTimeout        = 2 * time.Second
	DefaultMinConfidence  = 0.6
	DefaultMaxConcurrency = 8
)

// Source is a single-pair price lookup against the collaborator.
// Implementations: ForecastClient (HTTP forecast service) and
// StoreSource (directory store, current price only). Retry and caching
// policy belong to the collaborator, not to this package.
type Source interface {
	Quote(ctx context.Context, commodityID, mandiID int64) (*model.PriceQuote, error)
}

// Result is the fan-in product: quotes keyed by mandi ID plus one
// exclusion entry per failed lookup.
type Result struct {
	Quotes   map[int64]model.PriceQuote
	Failures []model.Exclusion
}

// Aggregator fans price lookups out over a Source.
type Aggregator struct {
	src            Source
	timeout        time.Duration
	minConfidence  float64
	maxConcurrency int
}

// NewAggregator creates an aggregator. Zero values for timeout,
// minConfidence, and maxConcurrency select the package defaults.
func NewAggregator(src Source, timeout time.Duration, minConfidence float64, maxConcurrency int) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Aggregator{
		src:            src,
		timeout:        timeout,
		minConfidence:  minConfidence,
		maxConcurrency: maxConcurrency,
	}
}

// MinConfidence returns the forecast confidence threshold in effect.
func (a *Aggregator) MinConfidence() float64 {
	return a.minConfidence
}

// FetchQuotes looks up prices for every mandi concurrently and waits
// for all outstanding lookups before returning. Cancelling ctx cancels
// the remaining lookups cooperatively.
func (a *Aggregator) FetchQuotes(ctx context.Context, commodityID int64, mandiIDs []int64) Result {
	var (
		mu       sync.Mutex
		quotes   = make(map[int64]model.PriceQuote, len(mandiIDs))
		failures []model.Exclusion
	)

	g := new(errgroup.Group)
	g.SetLimit(a.maxConcurrency)

	for _, mandiID := range mandiIDs {
		mandiID := mandiID
		g.Go(func() error {
			lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			q, err := a.src.Quote(lookupCtx, commodityID, mandiID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				quotes[mandiID] = *q
			case errors.Is(err, ErrNoQuote):
				failures = append(failures, model.Exclusion{MandiID: mandiID, Reason: model.ReasonNoPriceData})
			case errors.Is(err, context.DeadlineExceeded):
				failures = append(failures, model.Exclusion{MandiID: mandiID, Reason: model.ReasonLookupTimeout})
			default:
				failures = append(failures, model.Exclusion{MandiID: mandiID, Reason: model.ReasonLookupFailed})
			}
			return nil
		})
	}

	g.Wait() // goroutines never return errors; failures are per-mandi

	// Deterministic failure order for identical inputs.
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].MandiID < failures[j].MandiID
	})

	return Result{Quotes: quotes, Failures: failures}
}

// EffectivePrice selects the price the scorer should use: the
// forecasted price when its confidence meets the threshold, otherwise
// the current price. The second return reports whether the forecast was
// used — "false" with a forecast present means forecast-unavailable,
// which is informational, not an error.
func (a *Aggregator) EffectivePrice(q model.PriceQuote) (decimal.Decimal, bool) {
	if q.ForecastedPrice != nil && q.Confidence != nil && *q.Confidence >= a.minConfidence {
		return *q.ForecastedPrice, true
	}
	return q.CurrentPrice, false
}

// ChangePct returns the forecasted percentage change versus the
// current price, rounded to one decimal place. Zero when no forecast
// exists or the current price carries no signal.
func ChangePct(q model.PriceQuote) float64 {
	if q.ForecastedPrice == nil || !q.CurrentPrice.IsPositive() {
		return 0
	}
	return q.ForecastedPrice.Sub(q.CurrentPrice).
		Div(q.CurrentPrice).
		Mul(decimal.NewFromInt(100)).
		Round(1).
		InexactFloat64()
}

// Trend classifies the forecasted price movement against the current
// price: more than +2% is rising, less than −2% falling, otherwise
// stable. Quotes without a forecast are stable by definition.
func Trend(q model.PriceQuote) string {
	if q.ForecastedPrice == nil || !q.CurrentPrice.IsPositive() {
		return model.TrendStable
	}
	changePct := q.ForecastedPrice.Sub(q.CurrentPrice).
		Div(q.CurrentPrice).
		Mul(decimal.NewFromInt(100))

	switch {
	case changePct.GreaterThan(decimal.NewFromInt(2)):
		return model.TrendRising
	case changePct.LessThan(decimal.NewFromInt(-2)):
		return model.TrendFalling
	default:
		return model.TrendStable
	}
}
