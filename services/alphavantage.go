package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-research/models"
	"stock-research/observability"
)

// AlphaVantageService handles communication with Alpha Vantage API
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	now        func() time.Time
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string, timeout time.Duration) *AlphaVantageService {
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://www.alphavantage.co/query",
		retry:      DefaultRetryConfig,
		now:        time.Now,
	}
}

// OverviewResponse represents the company overview response from Alpha Vantage
type OverviewResponse struct {
	Symbol        string `json:"Symbol"`
	Name          string `json:"Name"`
	Exchange      string `json:"Exchange"`
	Currency      string `json:"Currency"`
	Sector        string `json:"Sector"`
	Industry      string `json:"Industry"`
	MarketCap     string `json:"MarketCapitalization"`
	PERatio       string `json:"PERatio"`
	DividendYield string `json:"DividendYield"`
	Week52High    string `json:"52WeekHigh"`
	Week52Low     string `json:"52WeekLow"`

	// Set instead of the fields above when the key is throttled or invalid
	Note        string `json:"Note"`
	Information string `json:"Information"`
	ErrorMsg    string `json:"Error Message"`
}

// GetOverview returns descriptive and valuation data for a symbol
func (s *AlphaVantageService) GetOverview(ctx context.Context, symbol string) (models.StockMetadata, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "overview")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlphaVantage, "overview")

	overview, err := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (*OverviewResponse, error) {
		var overview *OverviewResponse
		err := WithRetry(ctx, s.retry, func() error {
			o, err := s.fetchOverview(ctx, symbol)
			if err != nil {
				return err
			}
			overview = o
			return nil
		})
		return overview, err
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "overview", errorType(err))
		return models.StockMetadata{}, err
	}

	return overview.toMetadata(s.now()), nil
}

func (s *AlphaVantageService) fetchOverview(ctx context.Context, symbol string) (*OverviewResponse, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch overview: %w", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: alphavantage status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var overview OverviewResponse
	if err := json.NewDecoder(resp.Body).Decode(&overview); err != nil {
		return nil, fmt.Errorf("%w: failed to decode overview: %w", models.ErrUpstreamUnavailable, err)
	}

	// throttling and key errors come back as 200 with a message; retrying won't help
	if msg := firstNonEmpty(overview.Note, overview.Information, overview.ErrorMsg); msg != "" {
		return nil, Permanent(fmt.Errorf("%w: alphavantage: %s", models.ErrUpstreamUnavailable, msg))
	}
	if overview.Symbol == "" {
		return nil, Permanent(fmt.Errorf("%w: alphavantage has no overview for %s", models.ErrUnknownSymbol, symbol))
	}
	return &overview, nil
}

func (o *OverviewResponse) toMetadata(fetchedAt time.Time) models.StockMetadata {
	meta := models.StockMetadata{
		Name:          o.Name,
		Currency:      o.Currency,
		PERatio:       parseOptionalDecimal(o.PERatio),
		MarketCap:     parseOptionalDecimal(o.MarketCap),
		DividendYield: parseOptionalDecimal(o.DividendYield),
		Sector:        models.StringPtr(optionalString(o.Sector)),
		Industry:      models.StringPtr(optionalString(o.Industry)),
		FetchedAt:     fetchedAt,
	}
	if v := parseOptionalDecimal(o.Week52High); v.Valid {
		meta.Week52High = v.Decimal
	}
	if v := parseOptionalDecimal(o.Week52Low); v.Valid {
		meta.Week52Low = v.Decimal
	}
	return meta
}

// parseOptionalDecimal treats "", "None", "-" and unparsable values as null
func parseOptionalDecimal(s string) decimal.NullDecimal {
	s = optionalString(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		observability.Debug("ignoring unparsable alphavantage value", "value", s, "error", err)
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func optionalString(s string) string {
	s = strings.TrimSpace(s)
	if s == "None" || s == "-" {
		return ""
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
