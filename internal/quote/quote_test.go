package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrianalytics/mandi-engine/internal/model"
	"github.com/agrianalytics/mandi-engine/internal/store"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func fptr(f float64) *float64 { return &f }

func dptr(f float64) *decimal.Decimal {
	v := decimal.NewFromFloat(f)
	return &v
}

// stubSource serves canned quotes per mandi ID; missing entries report
// errNoQuote, entries in failing report a generic error, and entries in
// slow block until the lookup context expires.
type stubSource struct {
	quotes  map[int64]model.PriceQuote
	failing map[int64]bool
	slow    map[int64]bool
}

func (s *stubSource) Quote(ctx context.Context, _ int64, mandiID int64) (*model.PriceQuote, error) {
	if s.slow[mandiID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.failing[mandiID] {
		return nil, errors.New("upstream exploded")
	}
	q, ok := s.quotes[mandiID]
	if !ok {
		return nil, ErrNoQuote
	}
	return &q, nil
}

func quoteFor(mandiID int64, price float64) model.PriceQuote {
	return model.PriceQuote{
		MandiID:      mandiID,
		CommodityID:  2,
		AsOfDate:     time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
		CurrentPrice: d(price),
	}
}

// --- Fan-out tests ---

func TestFetchQuotes_AllSucceed(t *testing.T) {
	src := &stubSource{quotes: map[int64]model.PriceQuote{
		1: quoteFor(1, 1550),
		2: quoteFor(2, 1400),
		3: quoteFor(3, 1720),
	}}
	agg := NewAggregator(src, 0, 0, 0)

	res := agg.FetchQuotes(context.Background(), 2, []int64{1, 2, 3})
	if len(res.Quotes) != 3 || len(res.Failures) != 0 {
		t.Fatalf("expected 3 quotes and no failures, got %d/%d", len(res.Quotes), len(res.Failures))
	}
	// Results are keyed by mandi ID, not arrival order.
	if !res.Quotes[2].CurrentPrice.Equal(d(1400)) {
		t.Errorf("quote for mandi 2 mismatched: %s", res.Quotes[2].CurrentPrice)
	}
}

func TestFetchQuotes_PartialFailure(t *testing.T) {
	// 2 of 5 lookups fail: the batch still succeeds with exactly 2
	// exclusions.
	src := &stubSource{
		quotes: map[int64]model.PriceQuote{
			1: quoteFor(1, 1550),
			3: quoteFor(3, 1720),
			5: quoteFor(5, 990),
		},
		failing: map[int64]bool{2: true, 4: true},
	}
	agg := NewAggregator(src, 0, 0, 0)

	res := agg.FetchQuotes(context.Background(), 2, []int64{1, 2, 3, 4, 5})
	if len(res.Quotes) != 3 {
		t.Errorf("expected 3 quotes, got %d", len(res.Quotes))
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(res.Failures))
	}
	// Failures sorted by mandi ID for reproducible output.
	if res.Failures[0].MandiID != 2 || res.Failures[1].MandiID != 4 {
		t.Errorf("failures not sorted by mandi ID: %+v", res.Failures)
	}
	for _, f := range res.Failures {
		if f.Reason != model.ReasonLookupFailed {
			t.Errorf("expected reason %q, got %q", model.ReasonLookupFailed, f.Reason)
		}
	}
}

func TestFetchQuotes_TimeoutIsolated(t *testing.T) {
	src := &stubSource{
		quotes: map[int64]model.PriceQuote{1: quoteFor(1, 1550)},
		slow:   map[int64]bool{2: true},
	}
	agg := NewAggregator(src, 20*time.Millisecond, 0, 0)

	start := time.Now()
	res := agg.FetchQuotes(context.Background(), 2, []int64{1, 2})
	elapsed := time.Since(start)

	if len(res.Quotes) != 1 {
		t.Errorf("expected the fast lookup to succeed, got %d quotes", len(res.Quotes))
	}
	if len(res.Failures) != 1 || res.Failures[0].Reason != model.ReasonLookupTimeout {
		t.Fatalf("expected one timeout failure, got %+v", res.Failures)
	}
	// Lookups run concurrently: total latency is bounded by roughly
	// one timeout, not the sum.
	if elapsed > 500*time.Millisecond {
		t.Errorf("fan-out took %v, lookups appear sequential", elapsed)
	}
}

func TestFetchQuotes_NoPriceData(t *testing.T) {
	src := &stubSource{quotes: map[int64]model.PriceQuote{}}
	agg := NewAggregator(src, 0, 0, 0)

	res := agg.FetchQuotes(context.Background(), 2, []int64{9})
	if len(res.Failures) != 1 || res.Failures[0].Reason != model.ReasonNoPriceData {
		t.Fatalf("expected no_price_data failure, got %+v", res.Failures)
	}
}

func TestFetchQuotes_CallerCancellation(t *testing.T) {
	src := &stubSource{slow: map[int64]bool{1: true, 2: true}}
	agg := NewAggregator(src, 5*time.Second, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := agg.FetchQuotes(ctx, 2, []int64{1, 2})
	if time.Since(start) > time.Second {
		t.Fatal("cancellation did not propagate to outstanding lookups")
	}
	if len(res.Failures) != 2 {
		t.Errorf("expected both lookups recorded as failures, got %+v", res.Failures)
	}
}

// --- Effective price tests ---

func TestEffectivePrice_ForecastAboveThreshold(t *testing.T) {
	agg := NewAggregator(&stubSource{}, 0, 0.6, 0)
	q := quoteFor(1, 1500)
	q.ForecastedPrice = dptr(1620)
	q.Confidence = fptr(0.8)

	price, used := agg.EffectivePrice(q)
	if !used {
		t.Error("forecast with confidence 0.8 should be used at threshold 0.6")
	}
	if !price.Equal(d(1620)) {
		t.Errorf("expected forecasted price 1620, got %s", price)
	}
}

func TestEffectivePrice_LowConfidenceFallsBack(t *testing.T) {
	agg := NewAggregator(&stubSource{}, 0, 0.6, 0)
	q := quoteFor(1, 1500)
	q.ForecastedPrice = dptr(1620)
	q.Confidence = fptr(0.4)

	price, used := agg.EffectivePrice(q)
	if used {
		t.Error("confidence 0.4 must not clear threshold 0.6")
	}
	if !price.Equal(d(1500)) {
		t.Errorf("expected fallback to current price 1500, got %s", price)
	}
}

func TestEffectivePrice_ThresholdIsInclusive(t *testing.T) {
	agg := NewAggregator(&stubSource{}, 0, 0.6, 0)
	q := quoteFor(1, 1500)
	q.ForecastedPrice = dptr(1620)
	q.Confidence = fptr(0.6)

	if _, used := agg.EffectivePrice(q); !used {
		t.Error("confidence exactly at threshold should be accepted")
	}
}

func TestEffectivePrice_NoForecast(t *testing.T) {
	agg := NewAggregator(&stubSource{}, 0, 0, 0)
	q := quoteFor(1, 1500)

	price, used := agg.EffectivePrice(q)
	if used || !price.Equal(d(1500)) {
		t.Errorf("quote without forecast must use current price: used=%v price=%s", used, price)
	}
}

// --- Trend tests ---

func TestTrend(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		forecast *decimal.Decimal
		want     string
	}{
		{"no forecast", 1500, nil, model.TrendStable},
		{"rising", 1500, dptr(1560), model.TrendRising},   // +4%
		{"falling", 1500, dptr(1440), model.TrendFalling}, // -4%
		{"small move", 1500, dptr(1515), model.TrendStable},
		{"exact +2pct", 1500, dptr(1530), model.TrendStable},
	}
	for _, tt := range tests {
		q := quoteFor(1, tt.current)
		q.ForecastedPrice = tt.forecast
		if got := Trend(q); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestChangePct(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		forecast *decimal.Decimal
		want     float64
	}{
		{"no forecast", 1500, nil, 0},
		{"rising", 1500, dptr(1560), 4.0},
		{"falling", 1500, dptr(1437), -4.2},
		{"rounded to one decimal", 1000, dptr(1041), 4.1},
		{"unchanged", 1500, dptr(1500), 0},
	}
	for _, tt := range tests {
		q := quoteFor(1, tt.current)
		q.ForecastedPrice = tt.forecast
		if got := ChangePct(q); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

// --- Store-backed source ---

func TestStoreSource_MapsNotFound(t *testing.T) {
	mem := store.NewMemoryStore()
	src := NewStoreSource(mem)

	_, err := src.Quote(context.Background(), 2, 1)
	if !errors.Is(err, ErrNoQuote) {
		t.Errorf("expected ErrNoQuote for missing price, got %v", err)
	}

	want := quoteFor(1, 1550)
	if err := mem.UpsertPrice(context.Background(), &want); err != nil {
		t.Fatalf("seed price: %v", err)
	}
	got, err := src.Quote(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.CurrentPrice.Equal(want.CurrentPrice) {
		t.Errorf("expected price %s, got %s", want.CurrentPrice, got.CurrentPrice)
	}
}
