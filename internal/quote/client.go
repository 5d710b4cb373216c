package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrianalytics/mandi-engine/internal/model"
)

// ForecastClient implements Source against the external price/forecast
// service. The service owns the model; this client only consumes point
// estimates with confidence bounds. No retries here — retry policy
// belongs to the collaborator/transport layer.
type ForecastClient struct {
	baseURL string
	httpc   *http.Client
}

// NewForecastClient creates a client for the forecast service at
// baseURL. The HTTP client timeout is a safety net above the
// aggregator's per-lookup context timeout.
func NewForecastClient(baseURL string, timeout time.Duration) *ForecastClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ForecastClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// forecastResponse is the forecast service's wire format.
type forecastResponse struct {
	CommodityID    int64            `json:"commodity_id"`
	MandiID        int64            `json:"mandi_id"`
	CurrentPrice   decimal.Decimal  `json:"current_price"`
	PredictedPrice *decimal.Decimal `json:"predicted_price,omitempty"`
	Confidence     *float64         `json:"confidence,omitempty"`
	PredictionDate string           `json:"prediction_date"`
}

// Quote fetches the current and forecasted price for one
// (commodity, mandi) pair.
func (c *ForecastClient) Quote(ctx context.Context, commodityID, mandiID int64) (*model.PriceQuote, error) {
	q := url.Values{}
	q.Set("commodity_id", strconv.FormatInt(commodityID, 10))
	q.Set("mandi_id", strconv.FormatInt(mandiID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("quote: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote: forecast lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("commodity=%d mandi=%d: %w", commodityID, mandiID, ErrNoQuote)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote: forecast service returned %d", resp.StatusCode)
	}

	var body forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("quote: decode forecast response: %w", err)
	}

	asOf := time.Now().UTC()
	if t, err := time.Parse("2006-01-02", body.PredictionDate); err == nil {
		asOf = t
	}

	return &model.PriceQuote{
		CommodityID:     commodityID,
		MandiID:         mandiID,
		AsOfDate:        asOf,
		CurrentPrice:    body.CurrentPrice,
		ForecastedPrice: body.PredictedPrice,
		Confidence:      body.Confidence,
	}, nil
}
