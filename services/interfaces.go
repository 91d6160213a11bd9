package services

import (
	"context"
	"time"

	"stock-research/models"
)

// PriceHistorySource supplies daily OHLCV bars for a date range.
// Metadata is whatever the source reports alongside the bars and may be sparse.
type PriceHistorySource interface {
	GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceBar, models.StockMetadata, error)
	Name() string
}

// FundamentalsSource supplies descriptive and valuation data for a symbol
type FundamentalsSource interface {
	GetOverview(ctx context.Context, symbol string) (models.StockMetadata, error)
}

// MarketDataFetcher returns a full year of bars plus metadata for a symbol
type MarketDataFetcher interface {
	Fetch(ctx context.Context, symbol string) (*models.MarketData, error)
}

// LLMService is a single-shot text completion collaborator
type LLMService interface {
	InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Provider() string
	Model() string
}

// Compile-time interface verification
var _ PriceHistorySource = (*YahooService)(nil)
var _ PriceHistorySource = (*AlpacaService)(nil)
var _ PriceHistorySource = (*DemoSource)(nil)
var _ FundamentalsSource = (*AlphaVantageService)(nil)
var _ FundamentalsSource = (*FMPService)(nil)
var _ MarketDataFetcher = (*MarketDataService)(nil)
var _ LLMService = (*AnthropicService)(nil)
var _ LLMService = (*BedrockService)(nil)
var _ LLMService = (*OpenAIService)(nil)
