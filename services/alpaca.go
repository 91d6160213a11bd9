package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"stock-research/models"
	"stock-research/observability"
)

// alpacaBarsClient is the slice of the Alpaca market data client we use
type alpacaBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaService reads daily bars from Alpaca market data.
// Alpaca covers US listings only and reports no descriptive metadata.
type AlpacaService struct {
	dataClient alpacaBarsClient
	retry      RetryConfig
}

// NewAlpacaService creates a new AlpacaService instance
func NewAlpacaService(apiKey, apiSecret string) *AlpacaService {
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &AlpacaService{
		dataClient: dataClient,
		retry:      DefaultRetryConfig,
	}
}

func (s *AlpacaService) Name() string { return BreakerAlpaca }

// GetDailyHistory returns split-adjusted daily bars between start and end
func (s *AlpacaService) GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, models.StockMetadata, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "get_bars")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlpaca, "get_bars")

	raw, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() ([]marketdata.Bar, error) {
		var bars []marketdata.Bar
		err := WithRetry(ctx, s.retry, func() error {
			b, err := s.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
				TimeFrame:  marketdata.OneDay,
				Start:      start,
				End:        end,
				Adjustment: marketdata.Split,
			})
			if err != nil {
				return fmt.Errorf("%w: alpaca bars for %s: %w", models.ErrUpstreamUnavailable, symbol, err)
			}
			bars = b
			return nil
		})
		return bars, err
	})
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "get_bars", errorType(err))
		return nil, models.StockMetadata{}, err
	}
	if len(raw) == 0 {
		return nil, models.StockMetadata{}, fmt.Errorf("%w: alpaca returned no bars for %s", models.ErrUnknownSymbol, symbol)
	}

	bars := make([]models.PriceBar, 0, len(raw))
	for _, bar := range raw {
		bars = append(bars, models.PriceBar{
			Date:   models.NewDate(bar.Timestamp.UTC()),
			Open:   decimal.NewFromFloat(bar.Open),
			High:   decimal.NewFromFloat(bar.High),
			Low:    decimal.NewFromFloat(bar.Low),
			Close:  decimal.NewFromFloat(bar.Close),
			Volume: int64(bar.Volume),
		})
	}

	return bars, models.StockMetadata{Currency: "USD"}, nil
}
