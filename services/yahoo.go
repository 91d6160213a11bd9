package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-research/models"
	"stock-research/observability"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooService reads daily history from the public Yahoo Finance chart API
type YahooService struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
}

// NewYahooService creates a YahooService with the given per-request timeout
func NewYahooService(timeout time.Duration) *YahooService {
	return &YahooService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    yahooBaseURL,
		retry:      DefaultRetryConfig,
	}
}

func (s *YahooService) Name() string { return BreakerYahoo }

// yahooChart is the subset of the v8 chart response we read
type yahooChart struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol           string   `json:"symbol"`
		Currency         string   `json:"currency"`
		LongName         string   `json:"longName"`
		ShortName        string   `json:"shortName"`
		GMTOffset        int64    `json:"gmtoffset"`
		FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// GetDailyHistory returns daily bars between start and end along with the
// chart metadata (name, currency and 52-week range)
func (s *YahooService) GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, models.StockMetadata, error) {
	type history struct {
		bars []models.PriceBar
		meta models.StockMetadata
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "chart")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerYahoo, "chart")

	h, err := WithCircuitBreaker(ctx, BreakerYahoo, func() (history, error) {
		var result *yahooChartResult
		err := WithRetry(ctx, s.retry, func() error {
			r, err := s.fetchChart(ctx, symbol, start, end)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err != nil {
			return history{}, err
		}
		bars, meta := parseChart(result)
		return history{bars: bars, meta: meta}, nil
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "chart", errorType(err))
		return nil, models.StockMetadata{}, err
	}
	if len(h.bars) == 0 {
		return nil, models.StockMetadata{}, fmt.Errorf("%w: yahoo returned no bars for %s", models.ErrUnknownSymbol, symbol)
	}
	return h.bars, h.meta, nil
}

func (s *YahooService) fetchChart(ctx context.Context, symbol string, start, end time.Time) (*yahooChartResult, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", s.baseURL, url.PathEscape(symbol), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo fetch: %w", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo read body: %w", models.ErrUpstreamUnavailable, err)
	}

	var chart yahooChart
	decodeErr := json.Unmarshal(body, &chart)

	if chart.Chart.Error != nil && isNotFound(chart.Chart.Error.Code, chart.Chart.Error.Description) {
		return nil, fmt.Errorf("%w: %s: %s", models.ErrUnknownSymbol, symbol, chart.Chart.Error.Description)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s: yahoo status 404", models.ErrUnknownSymbol, symbol)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: yahoo status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, Permanent(fmt.Errorf("%w: yahoo status %d: %s", models.ErrUpstreamUnavailable, resp.StatusCode, truncate(string(body), 200)))
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: yahoo decode: %w", models.ErrUpstreamUnavailable, decodeErr)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: yahoo api error: %s", models.ErrUpstreamUnavailable, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: %s: yahoo returned no data", models.ErrUnknownSymbol, symbol)
	}
	return &chart.Chart.Result[0], nil
}

// parseChart converts a chart result to bars, skipping days with no prices
func parseChart(r *yahooChartResult) ([]models.PriceBar, models.StockMetadata) {
	meta := models.StockMetadata{
		Name:     r.Meta.LongName,
		Currency: r.Meta.Currency,
	}
	if meta.Name == "" {
		meta.Name = r.Meta.ShortName
	}
	if r.Meta.FiftyTwoWeekHigh != nil {
		meta.Week52High = priceDecimal(*r.Meta.FiftyTwoWeekHigh)
	}
	if r.Meta.FiftyTwoWeekLow != nil {
		meta.Week52Low = priceDecimal(*r.Meta.FiftyTwoWeekLow)
	}

	if len(r.Indicators.Quote) == 0 {
		return nil, meta
	}
	quote := r.Indicators.Quote[0]

	bars := make([]models.PriceBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if c == nil || (valueOf(o) == 0 && valueOf(h) == 0 && valueOf(l) == 0 && *c == 0) {
			continue // holidays and halted sessions
		}
		bars = append(bars, models.PriceBar{
			// shift by the exchange offset so the bar lands on its local trading day
			Date:   models.NewDate(time.Unix(ts+r.Meta.GMTOffset, 0).UTC()),
			Open:   priceDecimal(valueOr(o, *c)),
			High:   priceDecimal(valueOr(h, *c)),
			Low:    priceDecimal(valueOr(l, *c)),
			Close:  priceDecimal(*c),
			Volume: int64(valueOf(at(quote.Volume, i))),
		})
	}
	return bars, meta
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func valueOf(v *float64) float64 {
	return valueOr(v, 0)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// priceDecimal drops float noise beyond four decimal places
func priceDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(4)
}

func isNotFound(code, description string) bool {
	return strings.EqualFold(code, "Not Found") ||
		strings.Contains(strings.ToLower(description), "no data found")
}

// errorType buckets an upstream error for metrics labels
func errorType(err error) string {
	switch {
	case errors.Is(err, models.ErrUnknownSymbol):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unavailable"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
