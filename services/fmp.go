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

// FMPService reads company fundamentals from Financial Modeling Prep
type FMPService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	now        func() time.Time
}

// NewFMPService creates a new FMPService instance
func NewFMPService(apiKey string, timeout time.Duration) *FMPService {
	return &FMPService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://financialmodelingprep.com/api/v3",
		retry:      DefaultRetryConfig,
		now:        time.Now,
	}
}

// fmpProfileResponse represents a company profile from the FMP API
type fmpProfileResponse struct {
	Symbol      string              `json:"symbol"`
	CompanyName string              `json:"companyName"`
	Currency    string              `json:"currency"`
	MktCap      decimal.NullDecimal `json:"mktCap"`
	Range       string              `json:"range"`
	Sector      string              `json:"sector"`
	Industry    string              `json:"industry"`
}

// fmpRatiosResponse represents trailing twelve month ratios from the FMP API
type fmpRatiosResponse struct {
	PERatio       decimal.NullDecimal `json:"peRatioTTM"`
	DividendYield decimal.NullDecimal `json:"dividendYieldTTM"`
}

// fmpError is returned as a JSON object instead of the usual array
type fmpError struct {
	ErrorMessage string `json:"Error Message"`
}

// GetOverview combines the company profile with TTM ratios. Missing ratios leave
// the valuation fields null.
func (s *FMPService) GetOverview(ctx context.Context, symbol string) (models.StockMetadata, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerFMP, "profile")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerFMP, "profile")

	profile, err := WithCircuitBreaker(ctx, BreakerFMP, func() (*fmpProfileResponse, error) {
		var profiles []fmpProfileResponse
		err := WithRetry(ctx, s.retry, func() error {
			return s.get(ctx, "profile", symbol, &profiles)
		})
		if err != nil {
			return nil, err
		}
		if len(profiles) == 0 {
			return nil, fmt.Errorf("%w: no FMP profile for %s", models.ErrUnknownSymbol, symbol)
		}
		return &profiles[0], nil
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerFMP, "profile", errorType(err))
		return models.StockMetadata{}, err
	}

	meta := models.StockMetadata{
		Name:      profile.CompanyName,
		Currency:  profile.Currency,
		MarketCap: positiveOrNull(profile.MktCap),
		Sector:    models.StringPtr(profile.Sector),
		Industry:  models.StringPtr(profile.Industry),
		FetchedAt: s.now().UTC(),
	}
	meta.Week52Low, meta.Week52High = parseRange(profile.Range)

	var ratios []fmpRatiosResponse
	if err := s.get(ctx, "ratios-ttm", symbol, &ratios); err != nil {
		observability.WithSymbol(symbol).Debug("FMP ratios unavailable", "error", err)
	} else if len(ratios) > 0 {
		meta.PERatio = positiveOrNull(ratios[0].PERatio)
		meta.DividendYield = ratios[0].DividendYield
	}

	return meta, nil
}

func (s *FMPService) get(ctx context.Context, endpoint, symbol string, out any) error {
	reqURL := fmt.Sprintf("%s/%s/%s?apikey=%s", s.baseURL, endpoint, url.PathEscape(symbol), url.QueryEscape(s.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Permanent(fmt.Errorf("failed to create %s request: %w", endpoint, err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: FMP %s request failed: %w", models.ErrUpstreamUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: FMP %s returned status %d", models.ErrUpstreamUnavailable, endpoint, resp.StatusCode)
	default:
		return Permanent(fmt.Errorf("%w: FMP %s returned status %d", models.ErrUpstreamUnavailable, endpoint, resp.StatusCode))
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: failed to decode FMP %s response: %w", models.ErrUpstreamUnavailable, endpoint, err)
	}
	if len(raw) > 0 && raw[0] == '{' {
		var apiErr fmpError
		_ = json.Unmarshal(raw, &apiErr)
		return Permanent(fmt.Errorf("%w: FMP %s: %s", models.ErrUpstreamUnavailable, endpoint, apiErr.ErrorMessage))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return Permanent(fmt.Errorf("%w: unexpected FMP %s payload: %w", models.ErrUpstreamUnavailable, endpoint, err))
	}
	return nil
}

// parseRange splits an FMP "low-high" price range such as "164.08-199.62"
func parseRange(r string) (low, high decimal.Decimal) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(r), "-")
	if !ok {
		return decimal.Zero, decimal.Zero
	}
	low, errLo := decimal.NewFromString(strings.TrimSpace(lo))
	high, errHi := decimal.NewFromString(strings.TrimSpace(hi))
	if errLo != nil || errHi != nil {
		return decimal.Zero, decimal.Zero
	}
	return low, high
}

func positiveOrNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid || !d.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return d
}
